package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	lsOwner  string
	lsViewer string
	lsLimit  int
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List an owner's media with freshly signed URLs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MREF == nil {
			return fmt.Errorf("app not initialized")
		}
		if lsOwner == "" {
			return fmt.Errorf("--owner is required")
		}
		viewer := lsViewer
		if viewer == "" {
			viewer = lsOwner
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		items, err := MREF.Media.Gallery(ctx, lsOwner, viewer, lsLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No media.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tPUBLIC\tSIZE\tCREATED\tURL")
		for _, it := range items {
			rec := it.Record
			fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\t%s\n",
				rec.ID, rec.Kind, rec.IsPublic, rec.SizeBytes,
				rec.CreatedAt.Format("2006-01-02 15:04:05"), it.URL)
		}
		return w.Flush()
	},
}

func init() {
	lsCmd.Flags().StringVar(&lsOwner, "owner", "", "owner whose media to list")
	lsCmd.Flags().StringVar(&lsViewer, "as", "", "list as this viewer (private media hidden unless viewer is the owner)")
	lsCmd.Flags().IntVar(&lsLimit, "limit", 50, "maximum number of items")
	rootCmd.AddCommand(lsCmd)
}
