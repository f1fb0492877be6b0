package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/foodatlas-cli/internal/store"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and the last ingest run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, err := st.Status(ctx)
		if err != nil {
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}

		formatStatus(os.Stdout, status)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print machine-readable JSON instead of a table")
	rootCmd.AddCommand(statusCmd)
}

// formatStatus writes store status to w.
func formatStatus(out io.Writer, s *store.Status) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Driver:\t%s\n", s.Driver)
	_, _ = fmt.Fprintf(w, "Tracts:\t%d\n", s.Tracts)
	_, _ = fmt.Fprintf(w, "Access rows:\t%d\n", s.AccessRows)
	if len(s.States) > 0 {
		_, _ = fmt.Fprintf(w, "States:\t%s\n", strings.Join(s.States, ", "))
	}

	if s.LastRun == nil {
		_, _ = fmt.Fprintf(w, "Last run:\tnone\n")
	} else {
		r := s.LastRun
		finished := "running"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(w, "Last run:\t%s\n", r.ID)
		_, _ = fmt.Fprintf(w, "  State:\t%s\n", r.State)
		_, _ = fmt.Fprintf(w, "  Started:\t%s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w, "  Finished:\t%s\n", finished)
		_, _ = fmt.Fprintf(w, "  Tracts:\t%d\n", r.TractCount)
		_, _ = fmt.Fprintf(w, "  Access rows:\t%d\n", r.AccessCount)
	}
	_ = w.Flush()
}
