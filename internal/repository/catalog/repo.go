package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/librarian/internal/db"
	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

const listPageSize = 500

// store is the consumer interface for the catalog (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Entry is a book together with the embedding of its document text.
type Entry struct {
	Book   book.Book
	Vector []float32
}

// Repo stores catalog entries as hashes under one FT index.
type Repo struct {
	store     store
	keyPrefix string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a catalog repository. An empty prefix falls back to domain.KeyPrefix.
func New(s store, keyPrefix string, vectorDim int) *Repo {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	return &Repo{store: s, keyPrefix: keyPrefix, vectorDim: vectorDim, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return r.keyPrefix + "books:idx" }

// EnsureIndex creates the FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.IndexName(), err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.IndexName(), r.bookPrefix(), r.vectorDim, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.IndexName(), err)
	}
	return nil
}

// DropIndex removes the FT index so the next EnsureIndex rebuilds it with the current
// settings. Stored books are kept and re-indexed on creation. A missing index is not an error.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.IndexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.IndexName(), err)
	}
	return nil
}

// Ready reports whether the FT index exists.
func (r *Repo) Ready(ctx context.Context) (bool, error) {
	return r.store.IndexExists(ctx, r.IndexName())
}

// Upsert writes entries in a single pipelined round-trip. Existing ids are overwritten.
func (r *Repo) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(entries))
	for i := range entries {
		e := &entries[i]
		if r.vectorDim > 0 && len(e.Vector) != r.vectorDim {
			return fmt.Errorf("entry %q: vector dim %d, want %d", e.Book.ID(), len(e.Vector), r.vectorDim)
		}
		items[i] = db.HashSetItem{Key: r.bookKey(e.Book.ID()), Fields: buildHashFields(&e.Book, e.Vector)}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d entries: %w", len(entries), err)
	}
	return nil
}

// Search returns up to k nearest entries. Scores are 1 - cosine distance, in store order.
func (r *Repo) Search(ctx context.Context, vector []float32, k int) ([]book.Hit, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.IndexName(),
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	if res == nil {
		return []book.Hit{}, nil
	}

	hits := make([]book.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		b := parseHashFields(r.bookID(e.Key), e.Fields)
		hits = append(hits, book.NewHit(b, 1-e.Distance))
	}
	return hits, nil
}

// GetByTitle looks up an entry by case-insensitive title.
func (r *Repo) GetByTitle(ctx context.Context, title string) (book.Book, error) {
	key := book.TitleKey(title)
	if key == "" {
		return book.Book{}, domain.ErrNotFound
	}
	res, err := r.store.SearchList(ctx, r.IndexName(), db.TagQuery(fieldTitleKey, key), 0, 1, returnFields)
	if err != nil {
		return book.Book{}, fmt.Errorf("title lookup: %w", err)
	}
	if res == nil || len(res.Entries) == 0 {
		return book.Book{}, domain.ErrNotFound
	}
	e := res.Entries[0]
	return parseHashFields(r.bookID(e.Key), e.Fields), nil
}

// ListTitles returns every stored title, paging through the index.
func (r *Repo) ListTitles(ctx context.Context) ([]string, error) {
	var titles []string
	for offset := 0; ; offset += listPageSize {
		res, err := r.store.SearchList(ctx, r.IndexName(), db.MatchAll, offset, listPageSize, []string{fieldTitle})
		if err != nil {
			return nil, fmt.Errorf("list titles at %d: %w", offset, err)
		}
		if res == nil {
			break
		}
		if titles == nil {
			titles = make([]string, 0, res.Total)
		}
		for _, e := range res.Entries {
			if t := e.Fields[fieldTitle]; t != "" {
				titles = append(titles, t)
			}
		}
		if len(res.Entries) < listPageSize || offset+listPageSize >= res.Total {
			break
		}
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}

// Count returns the number of stored entries.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.IndexName(), db.MatchAll)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (r *Repo) bookPrefix() string { return r.keyPrefix + "books:" }

func (r *Repo) bookKey(id string) string { return r.bookPrefix() + id }

func (r *Repo) bookID(key string) string { return strings.TrimPrefix(key, r.bookPrefix()) }
