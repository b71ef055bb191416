package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leavend/refgen/internal/domain"
	"github.com/leavend/refgen/internal/gateway"
	"github.com/leavend/refgen/internal/store"
)

type fakeGateway struct {
	calls    []gateway.GenerateRequest
	result   *gateway.GenerationResult
	err      error
	noKey    bool
	statusOK bool
}

func (f *fakeGateway) Generate(_ context.Context, req gateway.GenerateRequest) (*gateway.GenerationResult, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &gateway.GenerationResult{
		Model: "fake-model",
		Parts: []gateway.Part{{Kind: gateway.PartImage, MimeType: "image/png", Data: base64.StdEncoding.EncodeToString([]byte("generated"))}},
	}, nil
}

func (f *fakeGateway) TestConnection(context.Context) gateway.ConnectionStatus {
	return gateway.ConnectionStatus{Connected: f.statusOK, Model: "fake-model"}
}

func (f *fakeGateway) Configured() bool { return !f.noKey }

type failingArtifacts struct{ *store.Artifacts }

func (failingArtifacts) Create(context.Context, *domain.GeneratedArtifact) error {
	return domain.StoreFailure("insert", errors.New("disk full"))
}

type countingPrompts struct {
	*store.Prompts
	allCalls int
}

func (c *countingPrompts) All(ctx context.Context) ([]domain.PromptRecord, error) {
	c.allCalls++
	return c.Prompts.All(ctx)
}

type fixture struct {
	svc       *Service
	gw        *fakeGateway
	prompts   *store.Prompts
	artifacts *store.Artifacts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory()
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	gw := &fakeGateway{statusOK: true}
	prompts := store.NewPrompts(s)
	artifacts := store.NewArtifacts(s)
	svc := NewService(prompts, artifacts, gw, zerolog.Nop())

	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc.Clock = func() time.Time { return fixed }
	n := 0
	svc.IDs = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return &fixture{svc: svc, gw: gw, prompts: prompts, artifacts: artifacts}
}

func (f *fixture) upload(t *testing.T, promptID, name, text string, image []byte) *domain.PromptSummary {
	t.Helper()
	sum, err := f.svc.UploadPrompt(context.Background(), UploadRequest{
		PromptID:   promptID,
		PromptName: name,
		PromptText: text,
		Image:      image,
		FileName:   "ref.png",
		MimeType:   "image/png",
	})
	require.NoError(t, err)
	return sum
}

func TestGenerateFromReferenceUsesFirstRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "p1", "Sunset", "a sunset over mountains", []byte("X"))
	f.upload(t, "p1", "Dawn", "a dawn over hills", []byte("X2"))

	res, err := f.svc.GenerateFromReference(ctx, ReferenceRequest{
		PromptID:       "p1",
		ReferenceImage: base64.StdEncoding.EncodeToString([]byte("Y")),
	})
	require.NoError(t, err)

	require.Len(t, f.gw.calls, 1)
	assert.Equal(t, "a sunset over mountains", f.gw.calls[0].PromptText)
	assert.Equal(t, []byte("Y"), f.gw.calls[0].ReferenceImage)

	require.NotNil(t, res.PromptID)
	assert.Equal(t, "p1", *res.PromptID)
	assert.Equal(t, "Sunset", res.PromptName)
	assert.Equal(t, "fake-model", res.Model)

	arts, err := f.artifacts.All(ctx)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, res.ID, arts[0].ID)
	assert.Equal(t, "Sunset", arts[0].PromptName)
	assert.Equal(t, "a sunset over mountains", arts[0].PromptText)
	assert.Equal(t, domain.SourceTypeGenerated, arts[0].SourceType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("generated")), arts[0].ResultImageData)
}

func TestGenerateFromReferenceUnknownPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "p1", "Sunset", "a sunset", []byte("X"))

	_, err := f.svc.GenerateFromReference(ctx, ReferenceRequest{PromptID: "ghost", ReferenceImage: "WQ=="})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	e := domain.As(err)
	assert.Equal(t, "ghost", e.Details["promptId"])
	assert.Equal(t, int64(1), e.Details["totalRecords"])
	sample, ok := e.Details["sampleRecord"].(domain.PromptSummary)
	require.True(t, ok)
	assert.Equal(t, "p1", sample.PromptID)

	assert.Empty(t, f.gw.calls)
	n, err := f.artifacts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerateFromReferenceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ReferenceRequest
		want error
	}{
		{"missing promptId", ReferenceRequest{ReferenceImage: "WQ=="}, domain.ErrValidation},
		{"missing image", ReferenceRequest{PromptID: "p1"}, domain.ErrValidation},
		{"bad base64", ReferenceRequest{PromptID: "p1", ReferenceImage: "!!!"}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.GenerateFromReference(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.gw.calls)
}

func TestGenerateFromReferenceDataURL(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "p1", "Sunset", "a sunset", []byte("X"))

	_, err := f.svc.GenerateFromReference(context.Background(), ReferenceRequest{
		PromptID:       "p1",
		ReferenceImage: "data:image/webp;base64," + base64.StdEncoding.EncodeToString([]byte("Y")),
	})
	require.NoError(t, err)
	require.Len(t, f.gw.calls, 1)
	assert.Equal(t, "image/webp", f.gw.calls[0].MimeType)
	assert.Equal(t, []byte("Y"), f.gw.calls[0].ReferenceImage)
}

func TestGenerateGatewayFailureIsNotStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "p1", "Sunset", "a sunset", []byte("X"))
	f.gw.err = gateway.Classify(errors.New("You exceeded your current quota"))

	_, err := f.svc.GenerateFromReference(ctx, ReferenceRequest{PromptID: "p1", ReferenceImage: "WQ=="})
	require.Error(t, err)
	assert.Equal(t, domain.CodeQuotaExceeded, domain.As(err).Code())
	assert.NotErrorIs(t, err, domain.ErrValidation)

	n, err := f.artifacts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerateFailsWhenArtifactCannotBeStored(t *testing.T) {
	f := newFixture(t)
	f.svc.Artifacts = failingArtifacts{}

	_, err := f.svc.GenerateFromText(context.Background(), "a fox")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.Len(t, f.gw.calls, 1)
}

func TestGenerateFromText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.GenerateFromText(ctx, "  a red fox ")
	require.NoError(t, err)
	assert.Nil(t, res.PromptID)
	assert.Equal(t, domain.TextPromptName, res.PromptName)
	assert.Equal(t, "a red fox", res.PromptText)

	require.Len(t, f.gw.calls, 1)
	assert.Nil(t, f.gw.calls[0].ReferenceImage)

	arts, err := f.artifacts.All(ctx)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Nil(t, arts[0].PromptID)
	assert.Equal(t, domain.TextPromptName, arts[0].PromptName)
	assert.Equal(t, time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC), arts[0].CreatedAt)
}

func TestGenerateFromTextEmptyPrompt(t *testing.T) {
	f := newFixture(t)

	for _, prompt := range []string{"", "   "} {
		_, err := f.svc.GenerateFromText(context.Background(), prompt)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Empty(t, f.gw.calls)
}

func TestListPromptsDeduplicates(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "b", "B1", "bee", []byte("1"))
	f.upload(t, "a", "A1", "ant", []byte("2"))
	f.upload(t, "b", "B2", "bee again", []byte("3"))
	f.upload(t, "c", "C1", "cat", []byte("4"))
	f.upload(t, "a", "A2", "ant again", []byte("5"))

	entries, err := f.svc.ListPrompts(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, "B1", entries[0].PromptName)
	assert.Equal(t, "A1", entries[1].PromptName)
}

func TestListGeneratedArtifacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.GenerateFromText(ctx, "one")
	require.NoError(t, err)
	_, err = f.svc.GenerateFromText(ctx, "two")
	require.NoError(t, err)

	list, err := f.svc.ListGeneratedArtifacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "one", list.Images[0].PromptText)
	assert.Equal(t, "two", list.Images[1].PromptText)
}

func TestDiagnostics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.HasStoreURL = true
	f.upload(t, "p1", "Sunset", "a sunset", []byte("X"))
	_, err := f.svc.GenerateFromText(ctx, "fox")
	require.NoError(t, err)

	d, err := f.svc.Diagnostics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.ImagesCount)
	assert.Equal(t, int64(1), d.GeneratedImagesCount)
	require.NotNil(t, d.SampleRecord)
	assert.Equal(t, "p1", d.SampleRecord.PromptID)
	assert.True(t, d.Gateway.Connected)
	assert.True(t, d.HasAPIKey)
	assert.True(t, d.HasStoreURL)
}

func TestGenerateFromReferenceNormalizesPromptID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	sum := f.upload(t, decomposed, "Cafe", "a cup of coffee", []byte("X"))
	assert.Equal(t, composed, sum.PromptID)

	for _, id := range []string{decomposed, composed, " " + decomposed + " "} {
		res, err := f.svc.GenerateFromReference(ctx, ReferenceRequest{PromptID: id, ReferenceImage: "WQ=="})
		require.NoError(t, err, id)
		require.NotNil(t, res.PromptID)
		assert.Equal(t, composed, *res.PromptID)
		assert.Equal(t, "Cafe", res.PromptName)

		recs, err := f.svc.ImagesByPrompt(ctx, id)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	}
}

func TestSampleRecordDoesNotScanAllPrompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	counting := &countingPrompts{Prompts: f.prompts}
	f.svc.Prompts = counting
	f.upload(t, "p1", "First", "one", []byte("1"))
	f.upload(t, "p2", "Second", "two", []byte("2"))

	_, err := f.svc.GenerateFromReference(ctx, ReferenceRequest{PromptID: "ghost", ReferenceImage: "WQ=="})
	require.ErrorIs(t, err, domain.ErrNotFound)
	sample, ok := domain.As(err).Details["sampleRecord"].(domain.PromptSummary)
	require.True(t, ok)
	assert.Equal(t, "p1", sample.PromptID)

	d, err := f.svc.Diagnostics(ctx)
	require.NoError(t, err)
	require.NotNil(t, d.SampleRecord)
	assert.Equal(t, "p1", d.SampleRecord.PromptID)

	assert.Zero(t, counting.allCalls)
}
