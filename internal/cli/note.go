package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/nav"
)

func init() {
	note := &cobra.Command{
		Use:   "note <id>",
		Short: "Draft or replace the clinical note of a record",
		Long:  "Ask the model to draft a formal clinical history for a stored record and save it. With --text, store the given text instead.",
		Args:  cobra.ExactArgs(1),
		Run:   runNote,
	}
	note.Flags().String("text", "", "Note text to store instead of generating one")

	export := &cobra.Command{
		Use:   "note-export <id>",
		Short: "Write the clinical note file and close the case",
		Long:  "Render the note with the facility header into \"<YYMMDD> - <LASTNAME, Names>.txt\" and mark the record as seen.",
		Args:  cobra.ExactArgs(1),
		Run:   runNoteExport,
	}
	export.Flags().StringP("dir", "o", ".", "Directory for the note file")

	finish := &cobra.Command{
		Use:   "finish <id>",
		Short: "Close a case as seen",
		Long:  "Mark a record as seen. Its pending items are cleared.",
		Args:  cobra.ExactArgs(1),
		Run:   runFinish,
	}

	RootCmd.AddCommand(note, export, finish)
}

func runNote(cmd *cobra.Command, args []string) {
	e := openApp(cmd)
	defer e.Close()

	if err := load(e.app, args[0]); err != nil {
		exitErr("note", err)
	}

	if cmd.Flags().Changed("text") {
		text, _ := cmd.Flags().GetString("text")
		if err := e.app.Session().EditNote(cmd.Context(), text); err != nil {
			exitErr("note", err)
		}
	} else {
		if e.app.View() == nav.HistoryEditor {
			e.app.Back()
		}
		call, err := e.app.GenerateNote()
		if err != nil {
			exitErr("note", err)
		}
		if err := call.Run(cmd.Context()); err != nil {
			exitErr("note", err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), e.app.Session().Snapshot().Note)
}

func runNoteExport(cmd *cobra.Command, args []string) {
	dir, _ := cmd.Flags().GetString("dir")

	e := openApp(cmd)
	defer e.Close()

	if err := load(e.app, args[0]); err != nil {
		exitErr("note-export", err)
	}
	if e.app.View() != nav.HistoryEditor {
		if _, err := e.app.OpenNote(); err != nil {
			exitErr("note-export", err)
		}
	}
	if e.app.Session().Snapshot().Note == "" {
		e.log.Warn().Str("id", args[0]).Msg("exporting a record without a note")
	}

	var buf bytes.Buffer
	name, err := e.app.ExportNote(cmd.Context(), &buf)
	if err != nil {
		exitErr("note-export", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		exitErr("write note", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"file":%q}`+"\n", path)
}

func runFinish(cmd *cobra.Command, args []string) {
	e := openApp(cmd)
	defer e.Close()

	if err := load(e.app, args[0]); err != nil {
		exitErr("finish", err)
	}
	rec, err := e.app.FinishCase(cmd.Context())
	if err != nil {
		exitErr("finish", err)
	}
	printJSON(cmd, rec)
}
