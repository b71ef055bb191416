package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/leavend/refgen/internal/domain"
)

// DefaultMimeType is assumed for reference images sent without one.
const DefaultMimeType = "image/jpeg"

const probeTimeout = 15 * time.Second

// contentGenerator is the slice of the genai client the gateway depends on.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures a Gemini gateway.
type Options struct {
	APIKey         string
	Model          string
	DisabledModels []string
	Timeout        time.Duration
	Logger         zerolog.Logger
}

// Gemini talks to the Gemini API through google.golang.org/genai.
type Gemini struct {
	models   contentGenerator
	selector *Selector
	logger   zerolog.Logger
}

// GenerateRequest is one generation call. ReferenceImage is raw bytes; nil
// means text-only generation.
type GenerateRequest struct {
	PromptText     string
	ReferenceImage []byte
	MimeType       string
}

// PartKind distinguishes returned content parts.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one content part returned by the provider. Data holds base64 text
// for image parts.
type Part struct {
	Kind     PartKind `json:"kind"`
	Text     string   `json:"text,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Data     string   `json:"data,omitempty"`
}

// GenerationResult is the provider's reply for one call.
type GenerationResult struct {
	Model     string
	Parts     []Part
	reference string
}

// ImageData returns the base64 payload of the first image part. When the
// provider only answered with text, the reference image is returned
// unchanged.
func (r *GenerationResult) ImageData() string {
	for _, p := range r.Parts {
		if p.Kind == PartImage && p.Data != "" {
			return p.Data
		}
	}
	return r.reference
}

// Echoed reports whether ImageData falls back to the reference image.
func (r *GenerationResult) Echoed() bool {
	for _, p := range r.Parts {
		if p.Kind == PartImage && p.Data != "" {
			return false
		}
	}
	return r.reference != ""
}

// Text joins every text part.
func (r *GenerationResult) Text() string {
	var texts []string
	for _, p := range r.Parts {
		if p.Kind == PartText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// ConnectionStatus is the outcome of TestConnection.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Model     string `json:"model"`
	Message   string `json:"message"`
	ErrorKind string `json:"errorKind,omitempty"`
	Hint      string `json:"hint,omitempty"`
}

// New builds a Gemini gateway. An empty API key is accepted; every call then
// fails with a configuration error.
func New(ctx context.Context, opts Options) (*Gemini, error) {
	if opts.APIKey == "" {
		return newGemini(nil, opts), nil
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, domain.Configuration("failed to create Gemini client: "+err.Error(), "verify GEMINI_API_KEY")
	}
	return newGemini(client.Models, opts), nil
}

func newGemini(models contentGenerator, opts Options) *Gemini {
	return &Gemini{
		models:   models,
		selector: NewSelector(opts.Model, opts.DisabledModels),
		logger:   opts.Logger.With().Str("component", "gateway").Logger(),
	}
}

// Configured reports whether a credential was supplied.
func (g *Gemini) Configured() bool { return g.models != nil }

// SelectModel returns the model that would serve task.
func (g *Gemini) SelectModel(task Task) string { return g.selector.SelectModel(task) }

func missingKey() *domain.Error {
	return domain.Configuration("GEMINI_API_KEY is not configured", "set GEMINI_API_KEY in the environment")
}

// Generate sends the prompt, and the reference image when present, to the
// selected model.
func (g *Gemini) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	if !g.Configured() {
		return nil, missingKey()
	}
	if strings.TrimSpace(req.PromptText) == "" {
		return nil, domain.MissingField("prompt")
	}

	task := TaskText
	if len(req.ReferenceImage) > 0 {
		task = TaskVision
	}
	candidate := g.selector.Select(task)

	parts := []*genai.Part{genai.NewPartFromText(BuildInstruction(req.PromptText, task == TaskVision))}
	if task == TaskVision {
		mimeType := req.MimeType
		if mimeType == "" {
			mimeType = DefaultMimeType
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: req.ReferenceImage}})
	}

	config := &genai.GenerateContentConfig{}
	if candidate.ProducesImages {
		config.ResponseModalities = append(config.ResponseModalities, "TEXT", "IMAGE")
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, candidate.ID, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		classified := Classify(err)
		g.logger.Warn().Err(err).Str("model", candidate.ID).Str("code", classified.Code()).Msg("generation failed")
		return nil, classified
	}

	result := &GenerationResult{Model: candidate.ID, Parts: collectParts(resp)}
	if task == TaskVision {
		result.reference = base64.StdEncoding.EncodeToString(req.ReferenceImage)
	}
	if len(result.Parts) == 0 {
		return nil, domain.Gateway(domain.ReasonUnknown, "generation failed: provider returned no content", "", errors.New("empty candidates"))
	}

	g.logger.Info().
		Str("model", candidate.ID).
		Int("parts", len(result.Parts)).
		Bool("echoed", result.Echoed()).
		Dur("elapsed", time.Since(start)).
		Msg("generation completed")
	return result, nil
}

func collectParts(resp *genai.GenerateContentResponse) []Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var out []Part
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			out = append(out, Part{
				Kind:     PartImage,
				MimeType: p.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
			})
			continue
		}
		if p.Text != "" {
			out = append(out, Part{Kind: PartText, Text: p.Text})
		}
	}
	return out
}

// TestConnection issues a minimal text generation and reports the outcome.
// It never returns an error; failures are described in the status.
func (g *Gemini) TestConnection(ctx context.Context) ConnectionStatus {
	model := g.selector.SelectModel(TaskText)
	if !g.Configured() {
		e := missingKey()
		return ConnectionStatus{Model: model, Message: e.Message, ErrorKind: e.Code(), Hint: e.Hint}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := g.models.GenerateContent(ctx, model, genai.Text("Hello"), nil)
	if err != nil {
		e := Classify(err)
		g.logger.Warn().Err(err).Str("model", model).Msg("connection test failed")
		return ConnectionStatus{Model: model, Message: e.Message, ErrorKind: e.Code(), Hint: e.Hint}
	}
	reply := ""
	for _, p := range collectParts(resp) {
		if p.Kind == PartText {
			reply = p.Text
			break
		}
	}
	return ConnectionStatus{Connected: true, Model: model, Message: strings.TrimSpace(reply)}
}
