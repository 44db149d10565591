package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	dombatch "github.com/kailas-cloud/librarian/internal/domain/batch"
	"github.com/kailas-cloud/librarian/internal/metrics"
	"github.com/kailas-cloud/librarian/internal/repository/catalog"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockEmbedder struct {
	calls    int
	failures int // number of leading calls that fail
	err      error
	short    bool
	inputs   [][]string
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	m.inputs = append(m.inputs, texts)
	if m.calls <= m.failures {
		return domain.BatchEmbeddingResult{}, m.err
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, n), TotalTokens: n}
	for i := range out.Embeddings {
		out.Embeddings[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type mockCatalog struct {
	ensureErrs []error
	ensured    int
	upsertErr  error
	entries    []catalog.Entry
}

func (m *mockCatalog) EnsureIndex(_ context.Context) error {
	m.ensured++
	if len(m.ensureErrs) >= m.ensured {
		return m.ensureErrs[m.ensured-1]
	}
	return nil
}

func (m *mockCatalog) Upsert(_ context.Context, entries []catalog.Entry) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.entries = append(m.entries, entries...)
	return nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func fastConfig(batch int) Config {
	return Config{BatchSize: batch, MaxAttempts: 3, RetryDelay: time.Millisecond}
}

const seed = `[
  {"title": "Dune", "summary": "Desert politics.", "themes": ["Politics", " Ecology "]},
  {"title": "Foundation", "summary": "An empire falls.", "themes": ["empire"]},
  {"title": "  dune ", "summary": "Again.", "themes": []},
  {"title": "", "summary": "No title.", "themes": []},
  {"title": "Neuromancer", "themes": ["cyberpunk"]},
  {"title": "Kindred", "summary": "Time travel and slavery.", "themes": "history"},
  {"title": "The Hobbit", "summary": "There and back again.", "themes": ["adventure"]}
]`

// --- Tests ---

func TestIngest_ValidatesDedupsAndStores(t *testing.T) {
	emb := &mockEmbedder{}
	cat := &mockCatalog{}
	inv := &countingInvalidator{}
	svc := New(emb, cat, fastConfig(2), zap.NewNop()).WithInvalidator(inv)

	report, err := svc.Ingest(context.Background(), []byte(seed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RunID == "" {
		t.Error("expected run id")
	}
	if report.Total != 7 {
		t.Errorf("Total = %d, want 7", report.Total)
	}
	if got := report.Count(dombatch.StatusOK); got != 3 {
		t.Errorf("ok = %d, want 3", got)
	}
	if got := report.Count(dombatch.StatusDuplicate); got != 1 {
		t.Errorf("duplicates = %d, want 1", got)
	}
	if got := report.Count(dombatch.StatusInvalid); got != 3 {
		t.Errorf("invalid = %d, want 3", got)
	}
	for _, r := range report.Results {
		if r.Status() == dombatch.StatusInvalid && !errors.Is(r.Err(), domain.ErrInvalidSeed) {
			t.Errorf("invalid record %s should wrap ErrInvalidSeed: %v", r.Key(), r.Err())
		}
	}

	if len(cat.entries) != 3 {
		t.Fatalf("stored %d entries, want 3", len(cat.entries))
	}
	dune := cat.entries[0].Book
	if dune.ID() != "dune" || dune.Themes()[0] != "politics" || dune.Themes()[1] != "ecology" {
		t.Errorf("unexpected first entry: id=%s themes=%v", dune.ID(), dune.Themes())
	}
	if !strings.HasPrefix(dune.Document(), "Title: Dune\nSummary: Desert politics.\nThemes: politics, ecology") {
		t.Errorf("document = %q", dune.Document())
	}
	if emb.calls != 2 {
		t.Errorf("expected 2 embedding batches of size 2, got %d", emb.calls)
	}
	if inv.n != 1 {
		t.Errorf("expected one invalidation, got %d", inv.n)
	}
}

func TestIngest_RejectsMalformedFile(t *testing.T) {
	svc := New(&mockEmbedder{}, &mockCatalog{}, fastConfig(0), zap.NewNop())
	for _, data := range []string{`{"title":"Dune"}`, `[]`, `not json`} {
		if _, err := svc.Ingest(context.Background(), []byte(data)); !errors.Is(err, domain.ErrInvalidSeed) {
			t.Errorf("Ingest(%q) err = %v, want ErrInvalidSeed", data, err)
		}
	}
}

func TestIngest_SimilarTitlesGetDistinctKeys(t *testing.T) {
	cat := &mockCatalog{}
	svc := New(&mockEmbedder{}, cat, fastConfig(10), zap.NewNop())

	data := `[
  {"title": "Война и мир", "summary": "Napoleon invades Russia.", "themes": ["war"]},
  {"title": "Преступление и наказание", "summary": "A student's crime.", "themes": ["guilt"]},
  {"title": "Anna Karenina", "summary": "A doomed affair.", "themes": ["love"]},
  {"title": "Anna-Karenina", "summary": "A variant edition.", "themes": ["love"]},
  {"title": "X", "summary": "One letter.", "themes": []},
  {"title": "X-", "summary": "One letter and a dash.", "themes": []}
]`
	report, err := svc.Ingest(context.Background(), []byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := report.Count(dombatch.StatusOK); got != 6 {
		t.Fatalf("ok = %d, want 6", got)
	}

	ids := map[string]string{}
	for _, e := range cat.entries {
		if prev, ok := ids[e.Book.ID()]; ok {
			t.Errorf("%q and %q stored under the same id %q", prev, e.Book.Title(), e.Book.ID())
		}
		ids[e.Book.ID()] = e.Book.Title()
	}
	if len(ids) != len(cat.entries) {
		t.Errorf("distinct ids = %d, entries = %d", len(ids), len(cat.entries))
	}
}

func TestParseSeed_DedupsOnTitleKey(t *testing.T) {
	books, rejected, err := parseSeed([]byte(`[
  {"title": "The Hobbit", "summary": "There and back again.", "themes": []},
  {"title": "the   HOBBIT", "summary": "Shouting.", "themes": []}
]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books) != 1 || len(rejected) != 1 || rejected[0].Status() != dombatch.StatusDuplicate {
		t.Errorf("books=%d rejected=%v", len(books), rejected)
	}
}

func TestIngest_RetriesTransientEmbeddingFailures(t *testing.T) {
	emb := &mockEmbedder{failures: 2, err: domain.ErrEmbeddingProviderError}
	cat := &mockCatalog{}
	svc := New(emb, cat, fastConfig(10), zap.NewNop())

	report, err := svc.Ingest(context.Background(), []byte(seed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", emb.calls)
	}
	if report.Count(dombatch.StatusOK) != 3 {
		t.Errorf("expected all valid records stored, got %d", report.Count(dombatch.StatusOK))
	}
}

func TestIngest_GivesUpAfterMaxAttempts(t *testing.T) {
	emb := &mockEmbedder{failures: 100, err: domain.ErrEmbeddingProviderError}
	inv := &countingInvalidator{}
	svc := New(emb, &mockCatalog{}, fastConfig(2), zap.NewNop()).WithInvalidator(inv)

	report, err := svc.Ingest(context.Background(), []byte(seed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 6 {
		t.Errorf("expected 3 attempts for each of 2 batches, got %d", emb.calls)
	}
	if report.Count(dombatch.StatusError) != 3 {
		t.Errorf("expected 3 failed records, got %d", report.Count(dombatch.StatusError))
	}
	if inv.n != 0 {
		t.Error("nothing stored, index must not be invalidated")
	}
}

func TestIngest_QuotaExhaustionCascades(t *testing.T) {
	emb := &mockEmbedder{failures: 100, err: domain.ErrTokenQuotaExceeded}
	svc := New(emb, &mockCatalog{}, fastConfig(1), zap.NewNop())

	report, err := svc.Ingest(context.Background(), []byte(seed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("quota errors must not be retried or continued, got %d calls", emb.calls)
	}
	if report.Count(dombatch.StatusError) != 3 {
		t.Errorf("expected all 3 valid records failed, got %d", report.Count(dombatch.StatusError))
	}
	for _, r := range report.Results {
		if r.Status() == dombatch.StatusError && !errors.Is(r.Err(), domain.ErrTokenQuotaExceeded) {
			t.Errorf("record %s: %v", r.Key(), r.Err())
		}
	}
}

func TestIngest_VectorCountMismatch(t *testing.T) {
	emb := &mockEmbedder{short: true}
	svc := New(emb, &mockCatalog{}, Config{BatchSize: 10, MaxAttempts: 1}, zap.NewNop())

	report, err := svc.Ingest(context.Background(), []byte(seed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Count(dombatch.StatusError) != 3 {
		t.Errorf("expected batch marked failed, got %d errors", report.Count(dombatch.StatusError))
	}
}

func TestIngest_UpsertFailure(t *testing.T) {
	cat := &mockCatalog{upsertErr: errors.New("READONLY")}
	svc := New(&mockEmbedder{}, cat, fastConfig(10), zap.NewNop())

	report, err := svc.Ingest(context.Background(), []byte(seed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Count(dombatch.StatusError) != 3 {
		t.Errorf("expected 3 failed records, got %d", report.Count(dombatch.StatusError))
	}
}

func TestIngest_EnsureIndexRetried(t *testing.T) {
	cat := &mockCatalog{ensureErrs: []error{errors.New("LOADING"), nil}}
	svc := New(&mockEmbedder{}, cat, fastConfig(10), zap.NewNop())

	if _, err := svc.Ingest(context.Background(), []byte(seed)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.ensured != 2 {
		t.Errorf("expected 2 EnsureIndex attempts, got %d", cat.ensured)
	}

	cat = &mockCatalog{ensureErrs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	svc = New(&mockEmbedder{}, cat, fastConfig(10), zap.NewNop())
	if _, err := svc.Ingest(context.Background(), []byte(seed)); err == nil {
		t.Fatal("expected error when the index never becomes available")
	}
}

func TestIngestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	cat := &mockCatalog{}
	svc := New(&mockEmbedder{}, cat, fastConfig(10), zap.NewNop())

	if _, err := svc.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.entries) != 3 {
		t.Errorf("stored %d entries, want 3", len(cat.entries))
	}

	if _, err := svc.IngestFile(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
