package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/model"
	"github.com/rcliao/guardia-ai/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patient records",
		Run:   runList,
	}

	cmd.Flags().StringP("status", "s", "", "Filter by status: new, pending or seen")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 for all)")
	cmd.Flags().Bool("ids-only", false, "Only output id and name")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	if status != "" && !model.ValidStatuses[model.Status(status)] {
		exitErr("list", fmt.Errorf("unknown status %q", status))
	}

	e := openApp(cmd)
	defer e.Close()

	records := slices.Collect(e.store.Search(store.SearchParams{
		Status: model.Status(status),
		Limit:  limit,
	}))

	if idsOnly {
		for _, r := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.ID, r.Name)
		}
		return
	}
	if records == nil {
		records = []model.PatientRecord{}
	}
	printJSON(cmd, records)
}
