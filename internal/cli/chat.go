package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/model"
	"github.com/rcliao/guardia-ai/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat <id>",
		Short: "Ask follow-up questions about a record",
		Long:  "Analyze a stored record, then answer questions about it line by line until EOF or \"salir\".",
		Args:  cobra.ExactArgs(1),
		Run:   runChat,
	}

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	e := openApp(cmd)
	defer e.Close()

	if err := loadForEditing(e.app, args[0]); err != nil {
		exitErr("chat", err)
	}
	call, err := e.app.SubmitAnalysis()
	if err != nil {
		exitErr("chat", err)
	}
	out := cmd.OutOrStdout()
	if err := call.Run(cmd.Context()); err != nil {
		fmt.Fprintln(out, e.app.Session().Snapshot().AnalysisError)
	}
	if _, err := e.app.StartChat(); err != nil {
		exitErr("chat", err)
	}

	shown := printTurns(out, e.app.Session().Snapshot().Transcript, 0)
	if err := chatLoop(cmd.Context(), e.app.Session(), cmd.InOrStdin(), out, shown); err != nil {
		exitErr("chat", err)
	}
}

func chatLoop(ctx context.Context, s *session.Session, in io.Reader, out io.Writer, shown int) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "salir" || line == "exit" {
			return nil
		}
		var se *model.ExternalServiceError
		if err := s.SendChat(ctx, line); err != nil && !errors.As(err, &se) {
			return err
		}
		shown = printTurns(out, s.Snapshot().Transcript, shown)
	}
}

// printTurns writes model turns from index from on and returns the new
// transcript length.
func printTurns(out io.Writer, turns []model.ChatMessage, from int) int {
	for _, m := range turns[from:] {
		if m.Role == model.RoleModel {
			fmt.Fprintf(out, "\n%s\n\n", m.Text)
		}
	}
	return len(turns)
}
