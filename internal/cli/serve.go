package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API for the browser front end",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8080)")
	cmd.Flags().StringSlice("cors", nil, "Allowed CORS origins")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cors, _ := cmd.Flags().GetStringSlice("cors")

	e := openApp(cmd)
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(e.app, e.log, cors...)
	if err := srv.Run(ctx, e.cfg.Addr); err != nil {
		exitErr("serve", err)
	}
}
