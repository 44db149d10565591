package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kailas-cloud/librarian/internal/domain"
	dombatch "github.com/kailas-cloud/librarian/internal/domain/batch"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

const recordSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["title", "summary", "themes"],
  "properties": {
    "title":   {"type": "string", "pattern": "\\S"},
    "summary": {"type": "string", "pattern": "\\S"},
    "themes":  {"type": "array", "items": {"type": "string"}}
  }
}`

var recordSchema = mustCompileRecordSchema()

func mustCompileRecordSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("seed-record.json", strings.NewReader(recordSchemaJSON)); err != nil {
		panic(fmt.Sprintf("load seed schema: %v", err))
	}
	return compiler.MustCompile("seed-record.json")
}

type seedRecord struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Themes  []string `json:"themes"`
}

// parseSeed decodes a seed file into books. Invalid records and repeated titles
// (compared by TitleKey) are reported, not fatal. Every kept book has a distinct id. A file that
// is not a non-empty JSON array is an error.
func parseSeed(data []byte) ([]book.Book, []dombatch.Result, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("seed must be a JSON array: %w", domain.ErrInvalidSeed)
	}
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("seed has no records: %w", domain.ErrInvalidSeed)
	}

	books := make([]book.Book, 0, len(raw))
	rejected := make([]dombatch.Result, 0)
	seen := make(map[string]struct{}, len(raw))
	ids := make(map[string]string, len(raw))

	for i, msg := range raw {
		pos := fmt.Sprintf("#%d", i)

		rec, err := decodeRecord(msg)
		if err != nil {
			rejected = append(rejected, dombatch.NewInvalid(pos, err))
			continue
		}

		b, err := book.New(rec.Title, rec.Summary, rec.Themes)
		if err != nil {
			rejected = append(rejected, dombatch.NewInvalid(pos, fmt.Errorf("%w: %w", domain.ErrInvalidSeed, err)))
			continue
		}

		if _, dup := seen[b.TitleKey()]; dup {
			rejected = append(rejected, dombatch.NewDuplicate(b.ID()))
			continue
		}
		if other, taken := ids[b.ID()]; taken {
			rejected = append(rejected, dombatch.NewInvalid(pos,
				fmt.Errorf("%w: id %q already used by %q", domain.ErrInvalidSeed, b.ID(), other)))
			continue
		}
		seen[b.TitleKey()] = struct{}{}
		ids[b.ID()] = b.Title()
		books = append(books, b)
	}
	return books, rejected, nil
}

func decodeRecord(msg json.RawMessage) (seedRecord, error) {
	var doc any
	if err := json.Unmarshal(msg, &doc); err != nil {
		return seedRecord{}, fmt.Errorf("decode record: %w", domain.ErrInvalidSeed)
	}
	if err := recordSchema.Validate(doc); err != nil {
		return seedRecord{}, fmt.Errorf("%w: %s", domain.ErrInvalidSeed, err.Error())
	}

	var rec seedRecord
	dec := json.NewDecoder(bytes.NewReader(msg))
	if err := dec.Decode(&rec); err != nil {
		return seedRecord{}, fmt.Errorf("decode record: %w", domain.ErrInvalidSeed)
	}
	return rec, nil
}
