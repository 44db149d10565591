package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/librarian/internal/domain/batch"
	"github.com/kailas-cloud/librarian/internal/usecase/ingest"
)

var (
	ingestFile    string
	ingestJSON    bool
	ingestReindex bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the seed file into the catalog",
	Long: `Load a JSON array of {title, summary, themes} records into the catalog.

Records are validated and de-duplicated by title, embedded in batches and
upserted, so running ingest twice on the same file is safe.

--reindex drops the vector index first so it is rebuilt with the current HNSW
settings. Stored books are kept.

Examples:
  librarian ingest
  librarian ingest --file data/books.json --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path := ingestFile
		if path == "" {
			path = cfg.Catalog.SeedPath
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if ingestReindex {
			if err := a.catalog.DropIndex(ctx); err != nil {
				return err
			}
			logger.Info("Catalog index dropped", zap.String("index", a.catalog.IndexName()))
		}

		report, err := a.ingest.IngestFile(ctx, path)
		if err != nil {
			return err
		}

		if ingestJSON {
			return writeIngestJSON(cmd.OutOrStdout(), report)
		}
		printIngestReport(cmd.OutOrStdout(), path, report)
		if report.Count(dombatch.StatusError) > 0 {
			return fmt.Errorf("%d records failed", report.Count(dombatch.StatusError))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "seed file (default: catalog.seed_path)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the report as JSON")
	ingestCmd.Flags().BoolVar(&ingestReindex, "reindex", false, "drop and rebuild the vector index before ingesting")
}

type ingestItemJSON struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ingestReportJSON struct {
	RunID  string           `json:"run_id"`
	Total  int              `json:"total"`
	Counts map[string]int   `json:"counts"`
	Items  []ingestItemJSON `json:"items"`
}

func writeIngestJSON(w io.Writer, r ingest.Report) error {
	out := ingestReportJSON{
		RunID:  r.RunID,
		Total:  r.Total,
		Counts: map[string]int{},
		Items:  make([]ingestItemJSON, 0, len(r.Results)),
	}
	for status, n := range dombatch.Tally(r.Results) {
		out.Counts[string(status)] = n
	}
	for _, res := range r.Results {
		item := ingestItemJSON{Key: res.Key(), Status: string(res.Status())}
		if res.Err() != nil {
			item.Error = res.Err().Error()
		}
		out.Items = append(out.Items, item)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printIngestReport(w io.Writer, path string, r ingest.Report) {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	fail := color.New(color.FgRed)

	bold.Fprintf(w, "Ingested %s (run %s)\n", path, r.RunID)
	ok.Fprintf(w, "  ✓ stored     %d\n", r.Count(dombatch.StatusOK))
	warn.Fprintf(w, "  ⚠ duplicate  %d\n", r.Count(dombatch.StatusDuplicate))
	warn.Fprintf(w, "  ⚠ invalid    %d\n", r.Count(dombatch.StatusInvalid))
	fail.Fprintf(w, "  ✗ failed     %d\n", r.Count(dombatch.StatusError))

	for _, res := range r.Results {
		if res.Err() == nil {
			continue
		}
		c := warn
		if res.Status() == dombatch.StatusError {
			c = fail
		}
		c.Fprintf(w, "    %s %s: %v\n", res.Status(), res.Key(), res.Err())
	}
}
