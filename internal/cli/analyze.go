package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze <id>",
		Short: "Ask the model for a syndromic analysis of a record",
		Long:  "Send a stored record to the model and print the syndrome, triage level, differentials and immediate management. The analysis is not stored.",
		Args:  cobra.ExactArgs(1),
		Run:   runAnalyze,
	}

	RootCmd.AddCommand(cmd)
}

type analysisOutput struct {
	ID          string          `json:"id"`
	TriageColor string          `json:"triageColor"`
	Analysis    *model.Analysis `json:"analysis"`
}

func runAnalyze(cmd *cobra.Command, args []string) {
	e := openApp(cmd)
	defer e.Close()

	if err := loadForEditing(e.app, args[0]); err != nil {
		exitErr("analyze", err)
	}
	call, err := e.app.SubmitAnalysis()
	if err != nil {
		exitErr("analyze", err)
	}
	if err := call.Run(cmd.Context()); err != nil {
		st := e.app.Session().Snapshot()
		exitErr("analyze", fmt.Errorf("%s: %w", st.AnalysisError, err))
	}

	st := e.app.Session().Snapshot()
	printJSON(cmd, analysisOutput{ID: args[0], TriageColor: st.TriageColor, Analysis: st.Analysis})
}
