package store

import (
	"context"

	"github.com/leavend/refgen/internal/domain"
)

// Prompts reads and writes PromptRecords in the images collection.
type Prompts struct {
	store Store
}

func NewPrompts(s Store) *Prompts {
	return &Prompts{store: s}
}

func (p *Prompts) Create(ctx context.Context, rec *domain.PromptRecord) error {
	doc, err := ToDocument(rec)
	if err != nil {
		return domain.StoreFailure("insert", err)
	}
	_, err = p.store.Insert(ctx, Images, doc)
	return err
}

// ByID returns the first record stored under id.
func (p *Prompts) ByID(ctx context.Context, id string) (*domain.PromptRecord, error) {
	rec, err := p.findOne(ctx, Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.NotFound("image not found", map[string]any{"id": id})
	}
	return rec, nil
}

// First returns the earliest stored record, or nil when the collection is
// empty.
func (p *Prompts) First(ctx context.Context) (*domain.PromptRecord, error) {
	return p.findOne(ctx, nil)
}

// ByPromptID returns every record for promptID in insertion order.
func (p *Prompts) ByPromptID(ctx context.Context, promptID string) ([]domain.PromptRecord, error) {
	return p.find(ctx, Filter{"promptId": promptID})
}

func (p *Prompts) All(ctx context.Context) ([]domain.PromptRecord, error) {
	return p.find(ctx, nil)
}

func (p *Prompts) Delete(ctx context.Context, id string) (int64, error) {
	return p.store.Remove(ctx, Images, Filter{"id": id})
}

func (p *Prompts) Count(ctx context.Context) (int64, error) {
	return p.store.Count(ctx, Images)
}

func (p *Prompts) findOne(ctx context.Context, f Filter) (*domain.PromptRecord, error) {
	doc, err := p.store.FindOne(ctx, Images, f)
	if err != nil || doc == nil {
		return nil, err
	}
	rec, err := FromDocument[domain.PromptRecord](doc)
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	return &rec, nil
}

func (p *Prompts) find(ctx context.Context, f Filter) ([]domain.PromptRecord, error) {
	docs, err := p.store.Find(ctx, Images, f)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PromptRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := FromDocument[domain.PromptRecord](doc)
		if err != nil {
			return nil, domain.StoreFailure("find", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
