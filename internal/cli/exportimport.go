package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/snapshot"
	"github.com/engramdb/engram/internal/store"
)

var (
	exportOwner string
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one owner's records as a JSON bundle",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import [bundle.json]",
	Short: "Import a JSON bundle, skipping records already present",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOwner, "owner", "", "Owner as device:user (required)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to file instead of stdout")
	exportCmd.MarkFlagRequired("owner")
}

func runExport(cmd *cobra.Command, args []string) error {
	owner, err := store.ParseOwnerKey(exportOwner)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.db.Close() // read-only; no save

	data, err := snapshot.Export(a.st, owner)
	if err != nil {
		return err
	}

	if exportOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	fmt.Fprintf(os.Stderr, "exported %s to %s\n", owner.Key(), exportOut)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}

	added, err := snapshot.Import(a.st, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %d record(s)\n", added)
	return a.Close()
}
