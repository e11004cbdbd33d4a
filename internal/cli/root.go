package cli

import (
	"io"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type GlobalOptions struct {
	JSON       bool
	Quiet      bool
	DataPath   string
	ConfigPath string
	HomePath   string
	LogLevel   string
	NoAudit    bool
}

type commandDeps struct {
	globals *GlobalOptions
	out     io.Writer
	build   BuildInfo
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &GlobalOptions{}
	deps := commandDeps{
		globals: globals,
		out:     out,
		build:   build,
	}

	cmd := &cobra.Command{
		Use:   "tripbook",
		Short: "Travel agency record keeper for clients, airlines and flights",
		Example: "  tripbook client add --set Name=\"Ada Lovelace\" --set City=London --set Country=UK --set \"Phone Number=+44 20 7946 0000\"\n" +
			"  tripbook search --type client --field City --value london\n" +
			"  tripbook serve --listen 127.0.0.1:5000",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitCodeUsage, Err: err}
	})

	flags := cmd.PersistentFlags()
	flags.BoolVar(&globals.JSON, "json", false, "Emit JSON output")
	flags.BoolVar(&globals.Quiet, "quiet", false, "Suppress non-essential output")
	flags.StringVar(&globals.DataPath, "data", "", "Record file path (overrides config)")
	flags.StringVar(&globals.ConfigPath, "config", "", "Config file path")
	flags.StringVar(&globals.HomePath, "home", "", "Data directory for the record file and audit journal")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&globals.NoAudit, "no-audit", false, "Do not write to the audit journal")

	for _, kind := range recordKinds {
		cmd.AddCommand(newRecordCommand(deps, kind))
	}
	cmd.AddCommand(
		newSearchCommand(deps),
		newStatsCommand(deps),
		newNextIDCommand(deps),
		newServeCommand(deps),
		newExportCommand(deps),
		newImportCommand(deps),
		newRestoreCommand(deps),
		newAuditCommand(deps),
		newBrowseCommand(deps),
		newStatusCommand(deps),
		newDoctorCommand(deps),
		newDebugCommand(deps),
		newVersionCommand(deps),
	)
	cmd.InitDefaultCompletionCmd()
	return cmd
}
