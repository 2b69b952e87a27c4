package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/report"
	"github.com/sells-group/tcsync/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import [record-id...]",
	Short: "Create or update Xray tests for local records and link them",
	Long: "Imports the given records one at a time. Each record is created (or updated when it " +
		"already has an Xray issue), linked to its plans, executions, sets, folder and " +
		"preconditions, and the links are read back to detect drift.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ready, _ := cmd.Flags().GetBool("ready")
		ids, err := resolveImportIDs(ctx, st, args, ready)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "No records to import.")
			return nil
		}

		var observers []func(model.ProgressState)
		if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
			observers = append(observers, progressPrinter(os.Stderr))
		}

		coord := newCoordinator(initXray(), st, observers...)
		results := coord.RunBatchByID(ctx, ids)

		if n := writeBack(context.WithoutCancel(ctx), st, initNotion(), results); n > 0 {
			zap.L().Info("notion pages updated", zap.Int("count", n))
		}

		report.WriteTable(os.Stdout, results)

		if path, _ := cmd.Flags().GetString("report"); path != "" {
			if err := report.WriteXLSX(path, results); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Report written to %s.\n", path)
		}

		if s := report.Summarize(results); s.Failed > 0 {
			return eris.Errorf("%d of %d records failed", s.Failed, s.Total)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("ready", false, "import every record with status ready")
	importCmd.Flags().Bool("progress", false, "stream step progress to stderr")
	importCmd.Flags().String("report", "", "write an XLSX report to this path")
	rootCmd.AddCommand(importCmd)
}

type recordLister interface {
	ListRecords(ctx context.Context, filter store.RecordFilter) ([]model.TestCase, error)
}

// resolveImportIDs returns the explicit ids, or every ready record when
// ready is set.
func resolveImportIDs(ctx context.Context, st recordLister, args []string, ready bool) ([]string, error) {
	if len(args) > 0 && ready {
		return nil, eris.New("pass record ids or --ready, not both")
	}
	if !ready {
		if len(args) == 0 {
			return nil, eris.New("at least one record id is required (or --ready)")
		}
		return args, nil
	}

	records, err := st.ListRecords(ctx, store.RecordFilter{Status: model.RecordReady, Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "list ready records")
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids, nil
}

// progressPrinter prints a line whenever a record's current step changes.
func progressPrinter(out io.Writer) func(model.ProgressState) {
	last := map[string]string{}
	return func(p model.ProgressState) {
		key := fmt.Sprintf("%s/%d/%.2f", p.Phase, p.CurrentIndex, p.Percent())
		if last[p.RecordID] == key {
			return
		}
		last[p.RecordID] = key
		report.WriteProgress(out, p)
	}
}
