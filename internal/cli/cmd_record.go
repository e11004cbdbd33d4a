package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amanthanvi/tripbook/internal/app"
	"github.com/amanthanvi/tripbook/internal/record"
)

type recordKind struct {
	recordType string
	plural     string
	example    string
}

var recordKinds = []recordKind{
	{
		recordType: record.TypeClient,
		plural:     "clients",
		example: "  tripbook client add --str Name=\"Ada Lovelace\" --str \"Phone Number=+44 20 7946 0000\" --str City=London --str Country=UK\n" +
			"  tripbook client edit 1 --str City=Cambridge",
	},
	{
		recordType: record.TypeAirline,
		plural:     "airlines",
		example:    "  tripbook airline add --str \"Company Name=Nordic Air\"",
	},
	{
		recordType: record.TypeFlight,
		plural:     "flights",
		example: "  tripbook flight add --set Client_ID=1 --set Airline_ID=2 --str Date=2026-05-01T09:30 --str \"Start City=Oslo\" --str \"End City=Paris\"\n" +
			"  tripbook flight ls --json",
	},
}

func newRecordCommand(deps commandDeps, kind recordKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:     kind.recordType,
		Aliases: []string{kind.plural},
		Short:   fmt.Sprintf("Manage %s records", kind.recordType),
		Example: kind.example,
	}
	cmd.AddCommand(
		newRecordAddCommand(deps, kind),
		newRecordListCommand(deps, kind),
		newRecordShowCommand(deps, kind),
		newRecordEditCommand(deps, kind),
		newRecordRemoveCommand(deps, kind),
	)
	return cmd
}

func newRecordAddCommand(deps commandDeps, kind recordKind) *cobra.Command {
	fields := &fieldFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: fmt.Sprintf("Create a %s record", kind.recordType),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("%s add does not accept positional arguments", kind.recordType)
			}
			if fields.empty() {
				return usageErrorf("%s add needs at least one --set, --str or --file", kind.recordType)
			}
			input, err := fields.build(cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				created, err := rt.records[kind.recordType].Create(ctx, input)
				if err != nil {
					return err
				}
				return writeRecordResult(deps, created, "created")
			})
		},
	}
	addFieldFlags(cmd, fields)
	return cmd
}

func newRecordListCommand(deps commandDeps, kind recordKind) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   fmt.Sprintf("List %s records", kind.recordType),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("%s ls does not accept positional arguments", kind.recordType)
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				records, err := rt.records[kind.recordType].List(ctx)
				if err != nil {
					return err
				}
				return writeRecordList(deps, records)
			})
		},
	}
}

func newRecordShowCommand(deps commandDeps, kind recordKind) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: fmt.Sprintf("Show one %s record", kind.recordType),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(kind.recordType+" show", args)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				rec, err := rt.records[kind.recordType].Get(ctx, id)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, rec)
				}
				return printRecord(deps.out, rec)
			})
		},
	}
}

func newRecordEditCommand(deps commandDeps, kind recordKind) *cobra.Command {
	fields := &fieldFlags{}
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: fmt.Sprintf("Update fields of a %s record", kind.recordType),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(kind.recordType+" edit", args)
			if err != nil {
				return err
			}
			if fields.empty() {
				return usageErrorf("%s edit needs at least one --set, --str or --file", kind.recordType)
			}
			patch, err := fields.build(cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				updated, err := rt.records[kind.recordType].Update(ctx, id, patch)
				if err != nil {
					return err
				}
				return writeRecordResult(deps, updated, "updated")
			})
		},
	}
	addFieldFlags(cmd, fields)
	return cmd
}

func newRecordRemoveCommand(deps commandDeps, kind recordKind) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   fmt.Sprintf("Delete a %s record", kind.recordType),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(kind.recordType+" rm", args)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				if err := rt.records[kind.recordType].Delete(ctx, id); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"id": id, "deleted": true})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err := fmt.Fprintf(deps.out, "%s removed: %d\n", kind.recordType, id)
				return err
			})
		},
	}
}

func addFieldFlags(cmd *cobra.Command, fields *fieldFlags) {
	cmd.Flags().StringArrayVar(&fields.set, "set", nil, "Field as key=value; numbers, true, false and null keep their type")
	cmd.Flags().StringArrayVar(&fields.str, "str", nil, "Field as key=value, always stored as a string")
	cmd.Flags().StringVar(&fields.file, "file", "", "Read fields from a JSON object file (- for stdin)")
}

func parseIDArg(command string, args []string) (int64, error) {
	if len(args) != 1 {
		return 0, usageErrorf("%s requires exactly one <id>", command)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid id %q: must be a positive integer", args[0])
	}
	return id, nil
}

func writeRecordResult(deps commandDeps, rec *record.Record, verb string) error {
	if deps.globals.JSON {
		return printJSON(deps.out, rec)
	}
	id, _ := rec.ID()
	if deps.globals.Quiet {
		_, err := fmt.Fprintln(deps.out, id)
		return err
	}
	if _, err := fmt.Fprintf(deps.out, "%s %s: %d\n", rec.Type(), verb, id); err != nil {
		return err
	}
	return printRecord(deps.out, rec)
}

func writeRecordList(deps commandDeps, records []*record.Record) error {
	if deps.globals.JSON {
		if records == nil {
			records = []*record.Record{}
		}
		return printJSON(deps.out, records)
	}
	for _, rec := range records {
		id, _ := rec.ID()
		line := strconv.FormatInt(id, 10)
		if !deps.globals.Quiet {
			line = fmt.Sprintf("%d\t%s\t%s", id, rec.Type(), summarize(rec))
		}
		if _, err := fmt.Fprintln(deps.out, line); err != nil {
			return err
		}
	}
	return nil
}

func printRecord(w io.Writer, rec *record.Record) error {
	var err error
	rec.Each(func(key string, value record.Value) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, "  %s: %s\n", key, value.String())
	})
	return err
}

// summarize is the one-line label used by list output.
func summarize(rec *record.Record) string {
	text := func(field string) string {
		value, ok := rec.Get(field)
		if !ok {
			return ""
		}
		return value.Text()
	}

	switch rec.Type() {
	case record.TypeClient:
		return strings.TrimSpace(fmt.Sprintf("%s (%s, %s)", text(app.FieldName), text(app.FieldCity), text(app.FieldCountry)))
	case record.TypeAirline:
		return text(app.FieldCompanyName)
	case record.TypeFlight:
		return fmt.Sprintf("%s -> %s on %s", text(app.FieldStartCity), text(app.FieldEndCity), text(app.FieldDate))
	default:
		return ""
	}
}
