package cli

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/model"
	"github.com/rcliao/guardia-ai/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search records by name, DNI or chief complaint",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("status", "s", "", "Filter by status")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	e := openApp(cmd)
	defer e.Close()

	results := slices.Collect(e.store.Search(store.SearchParams{
		Query:  query,
		Status: model.Status(status),
		Limit:  limit,
	}))
	if len(results) == 0 {
		results = []model.PatientRecord{}
	}
	printJSON(cmd, results)
}
