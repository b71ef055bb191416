package generation

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/leavend/refgen/internal/domain"
	"github.com/leavend/refgen/internal/gateway"
)

// UploadRequest stores a reference image under a prompt. Image carries raw
// bytes from a multipart upload; ImageBase64 is used when Image is empty.
type UploadRequest struct {
	ID          string
	PromptID    string
	PromptName  string
	PromptText  string
	Image       []byte
	ImageBase64 string
	FileName    string
	MimeType    string
}

// UploadPrompt validates and stores a PromptRecord. The returned summary
// omits the image payload.
func (s *Service) UploadPrompt(ctx context.Context, req UploadRequest) (*domain.PromptSummary, error) {
	promptID := normalizeID(req.PromptID)
	if promptID == "" {
		return nil, domain.MissingField("promptId")
	}
	text := normalizeText(req.PromptText)
	if text == "" {
		return nil, domain.MissingField("prompt")
	}
	name := normalizeText(req.PromptName)
	if name == "" {
		name = promptID
	}

	img := Image{Data: req.Image, MimeType: req.MimeType}
	if len(img.Data) == 0 {
		if strings.TrimSpace(req.ImageBase64) == "" {
			return nil, domain.MissingField("image")
		}
		decoded, err := DecodeImage(req.ImageBase64, req.MimeType)
		if err != nil {
			return nil, err
		}
		img = decoded
	}
	if img.MimeType == "" {
		img.MimeType = gateway.DefaultMimeType
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = s.IDs()
	}

	rec := &domain.PromptRecord{
		ID:                 id,
		PromptID:           promptID,
		PromptName:         name,
		PromptText:         text,
		ReferenceImageData: EncodeImage(img.Data),
		OriginalFileName:   req.FileName,
		ByteSize:           int64(len(img.Data)),
		MimeType:           img.MimeType,
		UploadedAt:         s.now(),
	}
	if err := s.Prompts.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.Logger.Info().Str("id", rec.ID).Str("promptId", rec.PromptID).Int64("bytes", rec.ByteSize).Msg("reference image stored")
	summary := rec.Summary()
	return &summary, nil
}

// PromptEntry is one distinct prompt in ListPrompts.
type PromptEntry struct {
	ID         string    `json:"id"`
	PromptName string    `json:"promptName"`
	PromptText string    `json:"promptText"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ListPrompts returns one entry per distinct promptId in first-seen order.
func (s *Service) ListPrompts(ctx context.Context) ([]PromptEntry, error) {
	all, err := s.Prompts.All(ctx)
	if err != nil {
		return nil, err
	}
	unique := lo.UniqBy(all, func(r domain.PromptRecord) string { return r.PromptID })
	return lo.Map(unique, func(r domain.PromptRecord, _ int) PromptEntry {
		return PromptEntry{ID: r.PromptID, PromptName: r.PromptName, PromptText: r.PromptText, CreatedAt: r.UploadedAt}
	}), nil
}

// ArtifactList is the payload of ListGeneratedArtifacts.
type ArtifactList struct {
	Images []domain.GeneratedArtifact `json:"images"`
	Count  int                        `json:"count"`
}

// ListGeneratedArtifacts returns every artifact in insertion order.
func (s *Service) ListGeneratedArtifacts(ctx context.Context) (*ArtifactList, error) {
	arts, err := s.Artifacts.All(ctx)
	if err != nil {
		return nil, err
	}
	return &ArtifactList{Images: arts, Count: len(arts)}, nil
}

// ImageList pairs promptIds with image data by index.
type ImageList struct {
	PromptIDs []string `json:"promptIds"`
	Images    []string `json:"images"`
}

// ListImages returns every stored reference image as parallel arrays.
func (s *Service) ListImages(ctx context.Context) (*ImageList, error) {
	all, err := s.Prompts.All(ctx)
	if err != nil {
		return nil, err
	}
	return &ImageList{
		PromptIDs: lo.Map(all, func(r domain.PromptRecord, _ int) string { return r.PromptID }),
		Images:    lo.Map(all, func(r domain.PromptRecord, _ int) string { return r.ReferenceImageData }),
	}, nil
}

// GetImage returns the full record including image data.
func (s *Service) GetImage(ctx context.Context, id string) (*domain.PromptRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.MissingField("id")
	}
	return s.Prompts.ByID(ctx, id)
}

// ImagesByPrompt returns every record stored under promptID.
func (s *Service) ImagesByPrompt(ctx context.Context, promptID string) ([]domain.PromptRecord, error) {
	promptID = normalizeID(promptID)
	if promptID == "" {
		return nil, domain.MissingField("promptId")
	}
	return s.Prompts.ByPromptID(ctx, promptID)
}

// DeleteImage removes the record with id.
func (s *Service) DeleteImage(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.MissingField("id")
	}
	n, err := s.Prompts.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("image not found", map[string]any{"id": id})
	}
	s.Logger.Info().Str("id", id).Int64("removed", n).Msg("reference image deleted")
	return nil
}

// Diagnostics is an operational snapshot.
type Diagnostics struct {
	ImagesCount          int64                    `json:"imagesCount"`
	GeneratedImagesCount int64                    `json:"generatedImagesCount"`
	SampleRecord         *domain.PromptSummary    `json:"sampleRecord"`
	Gateway              gateway.ConnectionStatus `json:"gateway"`
	HasAPIKey            bool                     `json:"hasApiKey"`
	HasStoreURL          bool                     `json:"hasStoreUrl"`
	Timestamp            time.Time                `json:"timestamp"`
}

// Diagnostics aggregates store counts, a sample record and a gateway probe.
func (s *Service) Diagnostics(ctx context.Context) (*Diagnostics, error) {
	images, err := s.Prompts.Count(ctx)
	if err != nil {
		return nil, err
	}
	generated, err := s.Artifacts.Count(ctx)
	if err != nil {
		return nil, err
	}
	d := &Diagnostics{
		ImagesCount:          images,
		GeneratedImagesCount: generated,
		HasAPIKey:            s.Gateway.Configured(),
		HasStoreURL:          s.HasStoreURL,
		Timestamp:            s.now(),
	}
	if images > 0 {
		first, err := s.Prompts.First(ctx)
		if err != nil {
			return nil, err
		}
		if first != nil {
			sample := first.Summary()
			d.SampleRecord = &sample
		}
	}
	d.Gateway = s.Gateway.TestConnection(ctx)
	return d, nil
}

// TestConnection probes the gateway.
func (s *Service) TestConnection(ctx context.Context) gateway.ConnectionStatus {
	return s.Gateway.TestConnection(ctx)
}
