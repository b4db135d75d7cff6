package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/app"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one patient record",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	e := openApp(cmd)
	defer e.Close()

	rec, ok := e.store.Get(args[0])
	if !ok {
		exitErr("get", app.ErrNotFound)
	}
	printJSON(cmd, rec)
}
