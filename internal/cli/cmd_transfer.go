package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amanthanvi/tripbook/internal/app"
	"github.com/amanthanvi/tripbook/internal/audit"
)

func newExportCommand(deps commandDeps) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write every record to a compressed export file",
		Example: "  tripbook export --output agency.tbx",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("export does not accept positional arguments")
			}
			if strings.TrimSpace(outputPath) == "" {
				return usageErrorf("export requires --output")
			}

			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) (err error) {
				if err := os.MkdirAll(filepath.Dir(outputPath), 0o700); err != nil {
					return fmt.Errorf("create export directory: %w", err)
				}
				file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("open export file: %w", err)
				}
				defer func() {
					if closeErr := file.Close(); closeErr != nil && err == nil {
						err = fmt.Errorf("close export file: %w", closeErr)
					}
				}()

				result, err := rt.transfer.Export(ctx, file)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"output": outputPath, "records": result.Records})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "exported %d records to %s\n", result.Records, outputPath)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Export file path")
	return cmd
}

func newImportCommand(deps commandDeps) *cobra.Command {
	var (
		fromPath string
		mode     string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load records from an export file",
		Example: "  tripbook import --from agency.tbx\n" +
			"  tripbook import --from partner.tbx --mode append",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("import does not accept positional arguments")
			}
			if strings.TrimSpace(fromPath) == "" {
				return usageErrorf("import requires --from")
			}
			importMode := app.ImportMode(strings.ToLower(strings.TrimSpace(mode)))
			if importMode != app.ImportModeReplace && importMode != app.ImportModeAppend {
				return usageErrorf("unsupported import mode %q", mode)
			}

			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				file, err := os.Open(fromPath)
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer file.Close()

				result, err := rt.transfer.Import(ctx, file, importMode)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, result)
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "imported %d records (%s), skipped %d\n", result.Imported, result.Mode, result.Skipped)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&fromPath, "from", "", "Export file to read")
	cmd.Flags().StringVar(&mode, "mode", string(app.ImportModeReplace), "replace or append")
	return cmd
}

func newRestoreCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Put the record file back to its state before the last save",
		Long:  "Restore copies <data file>.bak over the record file. Backups are only kept when storage.keep_backup is enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("restore does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				event := audit.Event{
					Action:     audit.ActionStoreRestore,
					TargetType: "store",
					TargetID:   rt.store.Path(),
					Result:     audit.ResultSuccess,
				}
				if err := rt.store.RestoreBackup(); err != nil {
					event.Result = audit.ResultFailure
					_ = rt.recorder.Record(ctx, event)
					return fmt.Errorf("restore %s: %w", rt.store.BackupPath(), err)
				}
				if err := rt.recorder.Record(ctx, event); err != nil {
					rt.logger.Warn("audit restore failed", "error", err)
				}

				report, err := rt.repo.Load(ctx)
				if err != nil {
					return fmt.Errorf("reload records: %w", err)
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"path": rt.store.Path(), "records": report.Loaded})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "restored %d records from %s\n", report.Loaded, rt.store.BackupPath())
				return err
			})
		},
	}
}
