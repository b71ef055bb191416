package generation

import (
	"context"
	"strings"
	"time"

	"github.com/leavend/refgen/internal/domain"
	"github.com/leavend/refgen/internal/gateway"
)

// ReferenceRequest asks for a generation guided by a stored prompt.
// ReferenceImage is base64, optionally as a data URL.
type ReferenceRequest struct {
	PromptID       string
	ReferenceImage string
	MimeType       string
}

// Result is returned by both generation entry points.
type Result struct {
	ID              string    `json:"id"`
	PromptID        *string   `json:"promptId"`
	PromptName      string    `json:"promptName"`
	PromptText      string    `json:"prompt"`
	ResultImageData string    `json:"generatedImage"`
	Description     string    `json:"description,omitempty"`
	Model           string    `json:"model"`
	Echoed          bool      `json:"echoedReference"`
	CreatedAt       time.Time `json:"createdAt"`
}

// GenerateFromReference resolves req.PromptID to its first stored record,
// generates from that prompt and the reference image, and stores the
// artifact.
func (s *Service) GenerateFromReference(ctx context.Context, req ReferenceRequest) (*Result, error) {
	promptID := normalizeID(req.PromptID)
	if promptID == "" {
		return nil, domain.MissingField("promptId")
	}
	if strings.TrimSpace(req.ReferenceImage) == "" {
		return nil, domain.MissingField("referenceImage")
	}
	image, err := DecodeImage(req.ReferenceImage, req.MimeType)
	if err != nil {
		return nil, err
	}

	records, err := s.Prompts.ByPromptID(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, s.promptNotFound(ctx, promptID)
	}
	prompt := records[0]
	if len(records) > 1 {
		s.Logger.Debug().Str("promptId", promptID).Int("records", len(records)).Msg("multiple records share promptId; using first")
	}

	res, err := s.Gateway.Generate(ctx, gateway.GenerateRequest{
		PromptText:     prompt.PromptText,
		ReferenceImage: image.Data,
		MimeType:       image.MimeType,
	})
	if err != nil {
		return nil, err
	}

	return s.record(ctx, &promptID, prompt.PromptName, prompt.PromptText, res)
}

// GenerateFromText generates from free text. The artifact has no promptId
// and is named domain.TextPromptName.
func (s *Service) GenerateFromText(ctx context.Context, prompt string) (*Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.MissingField("prompt")
	}

	res, err := s.Gateway.Generate(ctx, gateway.GenerateRequest{PromptText: prompt})
	if err != nil {
		return nil, err
	}

	return s.record(ctx, nil, domain.TextPromptName, prompt, res)
}

func (s *Service) record(ctx context.Context, promptID *string, name, text string, res *gateway.GenerationResult) (*Result, error) {
	art := &domain.GeneratedArtifact{
		ID:              s.IDs(),
		PromptID:        promptID,
		PromptName:      name,
		PromptText:      text,
		ResultImageData: res.ImageData(),
		SourceType:      domain.SourceTypeGenerated,
		CreatedAt:       s.now(),
	}
	if err := s.Artifacts.Create(ctx, art); err != nil {
		s.Logger.Error().Err(err).Str("artifactId", art.ID).Str("model", res.Model).Msg("generated artifact lost: persist failed")
		return nil, err
	}
	if res.Echoed() {
		s.Logger.Warn().Str("artifactId", art.ID).Str("model", res.Model).Msg("model returned no image; stored reference image")
	}

	return &Result{
		ID:              art.ID,
		PromptID:        art.PromptID,
		PromptName:      art.PromptName,
		PromptText:      art.PromptText,
		ResultImageData: art.ResultImageData,
		Description:     res.Text(),
		Model:           res.Model,
		Echoed:          res.Echoed(),
		CreatedAt:       art.CreatedAt,
	}, nil
}

func (s *Service) promptNotFound(ctx context.Context, promptID string) error {
	details := map[string]any{"promptId": promptID, "totalRecords": int64(0), "sampleRecord": nil}
	if total, err := s.Prompts.Count(ctx); err == nil {
		details["totalRecords"] = total
	}
	if first, err := s.Prompts.First(ctx); err == nil && first != nil {
		details["sampleRecord"] = first.Summary()
	}
	return domain.NotFound("no prompt found for promptId "+promptID, details)
}
