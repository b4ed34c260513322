package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncFolder string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import a localization folder as new translation versions",
	Long: `Walks the localization folder for keys.txt files. Every <lang>.txt next
to a keys.txt holds one body per key, line by line. Unchanged bodies are
recognized and not stored twice. The latest translation index is refreshed
once at the end.

Examples:
  ledger sync --folder ./Localization
  LOCALIZATION_FOLDER=/srv/l10n ledger sync`,
	Args: cobra.NoArgs,
	RunE: runSyncCommand,
}

func init() {
	syncCmd.Flags().StringVar(&syncFolder, "folder", "", "Localization folder (default: sync.localization_folder)")
	rootCmd.AddCommand(syncCmd)
}

func runSyncCommand(cmd *cobra.Command, args []string) error {
	folder := syncFolder
	if folder == "" {
		folder = cfg.Sync.LocalizationFolder
	}
	if folder == "" {
		return errors.New("no localization folder: pass --folder or set sync.localization_folder")
	}

	l, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer l.Close()

	result, err := l.sync.SyncFolder(cmd.Context(), folder)
	if result != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "folders=%d files=%d failed=%d versions=%d created=%d\n",
			result.Folders, result.Files, result.Failed, result.Versions, result.Created)
	}
	if err != nil {
		logger.Error("Sync finished with errors", zap.Error(err))
		return err
	}
	return nil
}
