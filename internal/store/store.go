// Package store is the artifact store: a small document store over named
// collections with exact-match filters on top-level fields.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/samber/lo"

	"github.com/leavend/refgen/internal/domain"
)

// Collection names a logical group of documents.
type Collection string

const (
	Images          Collection = domain.CollectionImages
	GeneratedImages Collection = domain.CollectionGeneratedImages
)

// Collections lists every collection the service uses.
var Collections = []Collection{Images, GeneratedImages}

// Document is a JSON object. Numbers read back from any backend are float64.
type Document map[string]any

// Filter matches documents whose top-level fields equal every given value.
// Values must be scalars or nil. An empty filter matches everything.
type Filter map[string]any

// ErrNotConnected is returned by every operation issued before Open or after Close.
var ErrNotConnected = errors.New("store: not connected")

var (
	errMissingID     = errors.New("store: document id is required")
	errPatchID       = errors.New("store: id cannot be patched")
	collectionRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	fieldRegexp      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Store is the persistence contract shared by all backends. Implementations
// hold one connection handle, established by Open and reused by every call.
type Store interface {
	Open(ctx context.Context) error
	Close() error
	Insert(ctx context.Context, c Collection, doc Document) (string, error)
	Find(ctx context.Context, c Collection, f Filter) ([]Document, error)
	// FindOne returns the earliest inserted match, or nil when none exists.
	FindOne(ctx context.Context, c Collection, f Filter) (Document, error)
	Update(ctx context.Context, c Collection, f Filter, patch Document) (int64, error)
	Remove(ctx context.Context, c Collection, f Filter) (int64, error)
	Count(ctx context.Context, c Collection) (int64, error)
}

func validateCollection(c Collection) error {
	if !collectionRegexp.MatchString(string(c)) {
		return fmt.Errorf("store: invalid collection %q", c)
	}
	return nil
}

func validateFilter(f Filter) error {
	for key, value := range f {
		if !fieldRegexp.MatchString(key) {
			return fmt.Errorf("store: invalid filter field %q", key)
		}
		switch value.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("store: filter field %q must be a scalar, got %T", key, value)
		}
	}
	return nil
}

func validatePatch(patch Document) error {
	if _, ok := patch["id"]; ok {
		return errPatchID
	}
	if len(patch) == 0 {
		return errors.New("store: empty patch")
	}
	for key, value := range patch {
		if value == nil {
			return fmt.Errorf("store: patch field %q cannot be null", key)
		}
	}
	return nil
}

// documentID extracts the required string id of doc.
func documentID(doc Document) (string, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		return "", errMissingID
	}
	return id, nil
}

// sortedKeys returns the filter fields in a stable order for query building.
func sortedKeys(f Filter) []string {
	keys := lo.Keys(f)
	slices.Sort(keys)
	return keys
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	return doc, nil
}

// normalize round-trips v through JSON so that every backend hands back the
// same value shapes.
func normalize(doc Document) (Document, error) {
	data, err := encodeJSON(doc)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

// ToDocument converts a JSON-tagged struct into a Document.
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode %T: %w", v, err)
	}
	return decodeDocument(data)
}

// FromDocument decodes doc into a value of type T.
func FromDocument[T any](doc Document) (T, error) {
	var out T
	data, err := json.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("store: encode document: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("store: decode %T: %w", out, err)
	}
	return out, nil
}
