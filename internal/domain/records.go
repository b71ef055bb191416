package domain

import "time"

// Collections held by the artifact store.
const (
	CollectionImages          = "images"
	CollectionGeneratedImages = "generated_images"
)

const (
	// SourceTypeGenerated marks every GeneratedArtifact.
	SourceTypeGenerated = "generated"
	// TextPromptName names artifacts generated from free text.
	TextPromptName = "Text Prompt"
)

// PromptRecord is an uploaded reference image with its prompt metadata.
// Records sharing a PromptID are expected to carry the same prompt text; the
// first stored record is authoritative.
type PromptRecord struct {
	ID                 string    `json:"id"`
	PromptID           string    `json:"promptId"`
	PromptName         string    `json:"promptName"`
	PromptText         string    `json:"promptText"`
	ReferenceImageData string    `json:"referenceImageData"`
	OriginalFileName   string    `json:"originalFileName"`
	ByteSize           int64     `json:"byteSize"`
	MimeType           string    `json:"mimeType"`
	UploadedAt         time.Time `json:"uploadedAt"`
}

// Summary returns the record without its binary payload.
func (p PromptRecord) Summary() PromptSummary {
	return PromptSummary{
		ID:               p.ID,
		PromptID:         p.PromptID,
		PromptName:       p.PromptName,
		PromptText:       p.PromptText,
		OriginalFileName: p.OriginalFileName,
		ByteSize:         p.ByteSize,
		MimeType:         p.MimeType,
		UploadedAt:       p.UploadedAt,
	}
}

// PromptSummary is a PromptRecord minus ReferenceImageData.
type PromptSummary struct {
	ID               string    `json:"id"`
	PromptID         string    `json:"promptId"`
	PromptName       string    `json:"promptName"`
	PromptText       string    `json:"promptText"`
	OriginalFileName string    `json:"originalFileName"`
	ByteSize         int64     `json:"byteSize"`
	MimeType         string    `json:"mimeType"`
	UploadedAt       time.Time `json:"uploadedAt"`
}

// GeneratedArtifact is the immutable output of one successful generation.
// PromptID is nil when the artifact came from free text.
type GeneratedArtifact struct {
	ID              string    `json:"id"`
	PromptID        *string   `json:"promptId"`
	PromptName      string    `json:"promptName"`
	PromptText      string    `json:"promptText"`
	ResultImageData string    `json:"resultImageData"`
	SourceType      string    `json:"sourceType"`
	CreatedAt       time.Time `json:"createdAt"`
}
