package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Merge records from a JSON backup",
		Long:  "Merge records from a backup produced by export (file or stdin). Records with a matching id are overwritten, the rest are added.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	cmd.Flags().BoolP("yes", "y", false, "Confirm without prompting")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")

	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open file", err)
		}
		defer f.Close()
		r = f
	} else if !yes {
		exitErr("import", fmt.Errorf("reading stdin requires --yes, the prompt needs the terminal"))
	}

	e := openApp(cmd)
	defer e.Close()

	plan, err := e.app.PrepareImport(r)
	if err != nil {
		exitErr("import", err)
	}
	if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), plan.Prompt) {
		e.app.CancelImport()
		fmt.Fprintln(cmd.OutOrStdout(), `{"ok":false,"cancelled":true}`)
		return
	}

	res, err := e.app.ConfirmImport(cmd.Context(), plan.ID)
	if err != nil {
		exitErr("import", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"added":%d,"updated":%d}`+"\n", res.Added, res.Updated)
}
