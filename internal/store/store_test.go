package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leavend/refgen/internal/domain"
)

func backends(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemory() },
		"sqlite": func() Store {
			return NewSQLite(filepath.Join(t.TempDir(), "store.db"), zerolog.Nop())
		},
	}
}

func openStore(t *testing.T, newStore func() Store) Store {
	t.Helper()
	s := newStore()
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRejectsCallsBeforeOpen(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			_, err := s.Insert(ctx, Images, Document{"id": "a"})
			assert.ErrorIs(t, err, ErrNotConnected)
			assert.ErrorIs(t, err, domain.ErrStore)

			_, err = s.Find(ctx, Images, nil)
			assert.ErrorIs(t, err, ErrNotConnected)

			_, err = s.Count(ctx, Images)
			assert.ErrorIs(t, err, ErrNotConnected)
		})
	}
}

func TestStoreRejectsCallsAfterClose(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			require.NoError(t, s.Open(ctx))
			require.NoError(t, s.Close())

			_, err := s.Remove(ctx, Images, Filter{"id": "a"})
			assert.ErrorIs(t, err, ErrNotConnected)
		})
	}
}

func TestStoreInsertFindOrder(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := openStore(t, newStore)

			for _, doc := range []Document{
				{"id": "1", "promptId": "p1", "promptName": "first"},
				{"id": "2", "promptId": "p2", "promptName": "other"},
				{"id": "3", "promptId": "p1", "promptName": "second"},
			} {
				id, err := s.Insert(ctx, Images, doc)
				require.NoError(t, err)
				assert.Equal(t, doc["id"], id)
			}

			docs, err := s.Find(ctx, Images, Filter{"promptId": "p1"})
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "first", docs[0]["promptName"])
			assert.Equal(t, "second", docs[1]["promptName"])

			all, err := s.Find(ctx, Images, nil)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			n, err := s.Count(ctx, Images)
			require.NoError(t, err)
			assert.EqualValues(t, 3, n)
		})
	}
}

func TestStoreFindNoMatchReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := openStore(t, newStore)

			docs, err := s.Find(ctx, GeneratedImages, Filter{"promptId": "ghost"})
			require.NoError(t, err)
			assert.NotNil(t, docs)
			assert.Empty(t, docs)
		})
	}
}

func TestStoreNullFilterMatchesNullFields(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := openStore(t, newStore)
			_, err := s.Insert(ctx, GeneratedImages, Document{"id": "a", "promptId": nil})
			require.NoError(t, err)
			_, err = s.Insert(ctx, GeneratedImages, Document{"id": "b", "promptId": "p1"})
			require.NoError(t, err)

			docs, err := s.Find(ctx, GeneratedImages, Filter{"promptId": nil})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "a", docs[0]["id"])
		})
	}
}

func TestStoreUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := openStore(t, newStore)
			for _, id := range []string{"a", "b"} {
				_, err := s.Insert(ctx, Images, Document{"id": id, "promptId": "p1", "byteSize": 10})
				require.NoError(t, err)
			}

			n, err := s.Update(ctx, Images, Filter{"id": "a"}, Document{"promptName": "renamed"})
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			docs, err := s.Find(ctx, Images, Filter{"promptName": "renamed"})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "a", docs[0]["id"])
			assert.EqualValues(t, 10, docs[0]["byteSize"])

			_, err = s.Update(ctx, Images, Filter{"id": "a"}, Document{"id": "z"})
			assert.ErrorIs(t, err, domain.ErrStore)

			_, err = s.Update(ctx, Images, Filter{"id": "a"}, Document{"promptName": nil})
			assert.ErrorIs(t, err, domain.ErrStore)
			docs, err = s.Find(ctx, Images, Filter{"id": "a"})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "renamed", docs[0]["promptName"])

			n, err = s.Remove(ctx, Images, Filter{"promptId": "p1"})
			require.NoError(t, err)
			assert.EqualValues(t, 2, n)

			n, err = s.Remove(ctx, Images, Filter{"promptId": "p1"})
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStoreFindOne(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := openStore(t, newStore)

			doc, err := s.FindOne(ctx, Images, nil)
			require.NoError(t, err)
			assert.Nil(t, doc)

			for _, id := range []string{"a", "b", "c"} {
				_, err := s.Insert(ctx, Images, Document{"id": id, "promptId": "p" + id})
				require.NoError(t, err)
			}

			doc, err = s.FindOne(ctx, Images, nil)
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Equal(t, "a", doc["id"])

			doc, err = s.FindOne(ctx, Images, Filter{"promptId": "pc"})
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Equal(t, "c", doc["id"])

			doc, err = s.FindOne(ctx, Images, Filter{"promptId": "missing"})
			require.NoError(t, err)
			assert.Nil(t, doc)
		})
	}
}

func TestStoreNumericFilter(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := openStore(t, newStore)
			_, err := s.Insert(ctx, Images, Document{"id": "a", "byteSize": 42})
			require.NoError(t, err)

			docs, err := s.Find(ctx, Images, Filter{"byteSize": 42})
			require.NoError(t, err)
			assert.Len(t, docs, 1)
		})
	}
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, func() Store { return NewMemory() })

	_, err := s.Insert(ctx, Images, Document{"promptId": "p1"})
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = s.Find(ctx, Collection("images; DROP TABLE x"), nil)
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = s.Find(ctx, Images, Filter{"doc->>'x'": "y"})
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = s.Find(ctx, Images, Filter{"tags": []string{"a"}})
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestMemoryConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, func() Store { return NewMemory() })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Insert(ctx, GeneratedImages, Document{"id": string(rune('a' + i%26)), "n": i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	n, err := s.Count(ctx, GeneratedImages)
	require.NoError(t, err)
	assert.EqualValues(t, 50, n)
}

func TestFindReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, func() Store { return NewMemory() })
	_, err := s.Insert(ctx, Images, Document{"id": "a", "promptName": "Sunset"})
	require.NoError(t, err)

	docs, err := s.Find(ctx, Images, nil)
	require.NoError(t, err)
	docs[0]["promptName"] = "mutated"

	docs, err = s.Find(ctx, Images, nil)
	require.NoError(t, err)
	assert.Equal(t, "Sunset", docs[0]["promptName"])
}

func TestPostgresFilter(t *testing.T) {
	got, err := postgresFilter(Images, nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)

	got, err = postgresFilter(Images, Filter{"promptId": "p1", "id": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"promptId":"p1","id":"x"}`, got)

	_, err = postgresFilter(Collection("Bad-Name"), nil)
	assert.Error(t, err)
}

func TestSQLiteWhere(t *testing.T) {
	where, args := sqliteWhere(nil)
	assert.Equal(t, "1 = 1", where)
	assert.Empty(t, args)

	where, args = sqliteWhere(Filter{"promptId": "p1", "id": nil})
	assert.Equal(t, "json_type(doc, ?) = 'null' AND json_extract(doc, ?) = ?", where)
	assert.Equal(t, []any{"$.id", "$.promptId", "p1"}, args)
}
