package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/source"
	"github.com/sells-group/tcsync/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage local test-case records",
}

// -- records add --

var recordsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or refresh records from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("records"); err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		cases, err := source.LoadFile(file)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := upsertAll(cmd, st, cases)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Stored %d records from %s.\n", n, file)
		return nil
	},
}

// -- records pull --

var recordsPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull ready test cases from the Notion database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("pull"); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		if status == "" {
			status = cfg.Notion.ReadyStatus
		}

		cases, err := source.PullNotion(ctx, initNotion(), cfg.Notion.CaseDB, status)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := upsertAll(cmd, st, cases)
		if err != nil {
			return err
		}
		zap.L().Info("records pulled from notion", zap.Int("count", n), zap.String("status", status))
		fmt.Fprintf(os.Stderr, "Pulled %d records.\n", n)
		return nil
	},
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		src, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		records, err := st.ListRecords(ctx, store.RecordFilter{
			Status: model.RecordStatus(status),
			Source: src,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "records list")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}

		formatRecordsList(os.Stdout, records)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show a record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "records show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// -- records delete --

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Delete a local record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteRecord(ctx, args[0]); err != nil {
			return eris.Wrap(err, "records delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted %s.\n", args[0])
		return nil
	},
}

func init() {
	recordsAddCmd.Flags().StringP("file", "f", "", "YAML file with a cases list")
	_ = recordsAddCmd.MarkFlagRequired("file")

	recordsPullCmd.Flags().String("status", "", "Notion Status to pull (default from config)")

	recordsListCmd.Flags().String("status", "", "filter by status (draft, ready, imported, failed)")
	recordsListCmd.Flags().String("source", "", "filter by source (file, notion)")
	recordsListCmd.Flags().Int("limit", 100, "max number of records to display")

	recordsCmd.AddCommand(recordsAddCmd)
	recordsCmd.AddCommand(recordsPullCmd)
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsDeleteCmd)
	rootCmd.AddCommand(recordsCmd)
}

// upsertAll stores each case. Existing records keep their import state.
func upsertAll(cmd *cobra.Command, st store.Store, cases []model.TestCase) (int, error) {
	for i := range cases {
		if err := st.UpsertRecord(cmd.Context(), &cases[i]); err != nil {
			return i, eris.Wrapf(err, "store record %s", cases[i].ID)
		}
	}
	return len(cases), nil
}

// formatRecordsList writes a tabular list of records to out.
func formatRecordsList(out io.Writer, records []model.TestCase) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tSOURCE\tKEY\tLINKS\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t------\t---\t-----\t-------")

	for _, r := range records {
		title := r.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			title,
			r.Status,
			r.Source,
			r.ExternalKey,
			r.Linking.CountLinks(),
			r.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
