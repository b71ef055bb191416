package store

import (
	"context"

	"github.com/leavend/refgen/internal/domain"
)

// Artifacts appends and lists GeneratedArtifacts. Artifacts are never updated.
type Artifacts struct {
	store Store
}

func NewArtifacts(s Store) *Artifacts {
	return &Artifacts{store: s}
}

func (a *Artifacts) Create(ctx context.Context, art *domain.GeneratedArtifact) error {
	doc, err := ToDocument(art)
	if err != nil {
		return domain.StoreFailure("insert", err)
	}
	_, err = a.store.Insert(ctx, GeneratedImages, doc)
	return err
}

func (a *Artifacts) All(ctx context.Context) ([]domain.GeneratedArtifact, error) {
	docs, err := a.store.Find(ctx, GeneratedImages, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.GeneratedArtifact, 0, len(docs))
	for _, doc := range docs {
		art, err := FromDocument[domain.GeneratedArtifact](doc)
		if err != nil {
			return nil, domain.StoreFailure("find", err)
		}
		out = append(out, art)
	}
	return out, nil
}

func (a *Artifacts) Count(ctx context.Context) (int64, error) {
	return a.store.Count(ctx, GeneratedImages)
}
