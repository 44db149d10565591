package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain/answer"
	logpkg "github.com/kailas-cloud/librarian/internal/logger"
	chiTransport "github.com/kailas-cloud/librarian/internal/transport/chi"
)

var (
	askK      int
	askPretty bool
)

var askCmd = &cobra.Command{
	Use:   `ask "<query>"`,
	Short: "Answer one book request from the command line",
	Long: `Run a single query through the same pipeline as POST /chat and print the
answer as JSON.

Examples:
  librarian ask "a space opera about politics and religion"
  librarian ask --k 5 --pretty "o carte despre prietenie"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		runLogger := logger.With(zap.String("run_id", uuid.NewString()))
		ctx := logpkg.ContextWithLogger(cmd.Context(), runLogger)

		a, err := newApp(ctx, cfg, runLogger)
		if err != nil {
			return err
		}
		defer a.Close()

		svc := a.chatService(a.prepareCatalog(ctx))
		ans, err := svc.Ask(ctx, query, askK)
		if err != nil {
			return err
		}

		if askPretty {
			printAnswer(cmd.OutOrStdout(), ans)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(chiTransport.NewChatResponse(ans))
	},
}

func init() {
	askCmd.Flags().IntVar(&askK, "k", 0, "number of candidates to retrieve (default: chat.default_k)")
	askCmd.Flags().BoolVar(&askPretty, "pretty", false, "print a colored summary instead of JSON")
}

func printAnswer(w io.Writer, a answer.Answer) {
	label := color.New(color.FgCyan, color.Bold)
	title := color.New(color.FgGreen, color.Bold)
	dim := color.New(color.Faint)

	label.Fprint(w, "Query:  ")
	fmt.Fprintln(w, a.Query)
	label.Fprint(w, "Pick:   ")
	if a.ChosenTitle != nil {
		title.Fprintln(w, *a.ChosenTitle)
	} else {
		dim.Fprintf(w, "none (%s)\n", a.Outcome)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, a.Text)

	if len(a.Context) > 0 {
		fmt.Fprintln(w)
		label.Fprintln(w, "Candidates:")
		for _, c := range a.Context {
			fmt.Fprintf(w, "  - %s ", c.Title)
			dim.Fprintf(w, "[%s]\n", strings.Join(c.Themes, ", "))
		}
	}
}
