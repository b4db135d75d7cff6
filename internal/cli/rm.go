package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a patient record",
		Long:  "Delete a patient record after confirmation. Use --yes to skip the prompt.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	cmd.Flags().BoolP("yes", "y", false, "Confirm without prompting")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")

	e := openApp(cmd)
	defer e.Close()

	req, err := e.app.RequestDelete(args[0])
	if err != nil {
		exitErr("rm", err)
	}
	prompt := fmt.Sprintf("¿Eliminar el registro de %s (%s)? Esta acción no se puede deshacer.", orUnnamed(req.Name), req.ID)
	if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt) {
		e.app.CancelDelete()
		fmt.Fprintln(cmd.OutOrStdout(), `{"ok":false,"cancelled":true}`)
		return
	}
	if _, err := e.app.ConfirmDelete(cmd.Context()); err != nil {
		exitErr("rm", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", req.ID)
}

func orUnnamed(name string) string {
	if name == "" {
		return "paciente sin nombre"
	}
	return name
}
