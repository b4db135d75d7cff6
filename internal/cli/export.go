package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every record as a JSON backup",
		Long:  "Export every record as a pretty-printed JSON array. Writes to stdout, or to a dated backup file in --dir.",
		Run:   runExport,
	}

	cmd.Flags().StringP("dir", "o", "", "Write guardiaai_backup_<date>.json into this directory")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	dir, _ := cmd.Flags().GetString("dir")

	e := openApp(cmd)
	defer e.Close()

	var buf bytes.Buffer
	name, err := e.app.ExportBackup(&buf)
	if err != nil {
		exitErr("export", err)
	}

	if dir == "" {
		fmt.Fprintln(cmd.OutOrStdout(), buf.String())
		return
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		exitErr("write backup", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"file":%q,"records":%d}`+"\n", path, e.store.Len())
}
