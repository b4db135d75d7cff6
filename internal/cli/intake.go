package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/app"
	"github.com/rcliao/guardia-ai/internal/model"
)

func init() {
	intake := &cobra.Command{
		Use:   "intake field=value...",
		Short: "Register a new patient as pending",
		Long: "Register a new patient and save it as pending. Fields: " +
			strings.Join(model.EditableFields(), ", ") + ".",
		Example: `  guardia intake name="Juan Pérez" age=54 chiefComplaint="Dolor torácico" vitals.bp=150/90 --pending ecg,laboratorio`,
		Args:    cobra.MinimumNArgs(1),
		Run:     runIntake,
	}
	intake.Flags().StringP("pending", "p", "", "Comma-separated pending items (e.g. "+strings.Join(model.PendingOptions, ",")+")")

	edit := &cobra.Command{
		Use:   "edit <id> field=value...",
		Short: "Change fields of a stored record",
		Long:  "Change fields of a stored record and save it again with its current status.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runEdit,
	}
	edit.Flags().StringP("pending", "p", "", "Replace pending items (comma-separated)")
	edit.Flags().StringSlice("toggle", nil, "Toggle pending items on or off")

	RootCmd.AddCommand(intake, edit)
}

func applyFields(a *app.App, args []string) error {
	fields, order, err := parseAssignments(args)
	if err != nil {
		return err
	}
	for _, name := range order {
		if err := a.Session().Edit(name, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

func runIntake(cmd *cobra.Command, args []string) {
	pending, _ := cmd.Flags().GetString("pending")

	e := openApp(cmd)
	defer e.Close()

	e.app.NewPatient()
	if err := applyFields(e.app, args); err != nil {
		exitErr("intake", err)
	}
	if pending != "" {
		e.app.Session().SetPendingItems(splitList(pending))
	}
	rec, err := e.app.SavePending(cmd.Context())
	if err != nil {
		exitErr("intake", err)
	}
	printJSON(cmd, rec)
}

func runEdit(cmd *cobra.Command, args []string) {
	e := openApp(cmd)
	defer e.Close()

	id := args[0]
	if err := loadForEditing(e.app, id); err != nil {
		exitErr("edit", err)
	}
	if err := applyFields(e.app, args[1:]); err != nil {
		exitErr("edit", err)
	}
	if cmd.Flags().Changed("pending") {
		pending, _ := cmd.Flags().GetString("pending")
		e.app.Session().SetPendingItems(splitList(pending))
	}
	toggles, _ := cmd.Flags().GetStringSlice("toggle")
	for _, it := range toggles {
		e.app.Session().TogglePendingItem(it)
	}

	var (
		rec model.PatientRecord
		err error
	)
	if e.app.Session().Record().Status == model.StatusSeen {
		rec, err = e.app.FinishCase(cmd.Context())
	} else {
		rec, err = e.app.SavePending(cmd.Context())
	}
	if err != nil {
		exitErr("edit", fmt.Errorf("save %s: %w", id, err))
	}
	printJSON(cmd, rec)
}
