package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/paizhu/internal/attachments"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

const kindHelp = "Kinds: daily, weekly, monthly, immediate, attachments (or the table names daily_logs, weekly_records, monthly_records, immediate_events)."

func (a *app) newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Create, read, update and delete inspection records",
		Long:  "Manage inspection records.\n\n" + kindHelp,
	}
	cmd.AddCommand(a.newRecordCreateCmd())
	cmd.AddCommand(a.newRecordGetCmd())
	cmd.AddCommand(a.newRecordListCmd())
	cmd.AddCommand(a.newRecordUpdateCmd())
	cmd.AddCommand(a.newRecordDeleteCmd())
	return cmd
}

func (a *app) newRecordCreateCmd() *cobra.Command {
	var (
		file           string
		attach         []string
		allowDuplicate bool
	)
	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a record from JSON",
		Long: `Create reads a record as JSON from --file (or stdin) and saves it with the
files given by --attach. Each --attach takes slot=path; slots are
"attachments" and "anomaly:<i>" for daily logs, "hospital_check",
"injury_check", "mailbox", "contraband" and "talk:<i>" for weekly records,
"punishment" for monthly records and "attachments" for immediate events.

A second record for a date that already has one is refused unless
--allow-duplicate is given.

Example:
  paizhu record create daily --file log.json --attach attachments=/sdcard/DCIM/a.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return userErr(err)
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			rec, err := types.DecodeInput(kind, data)
			if err != nil {
				return userErr(err)
			}
			uploads, err := parseUploads(attach)
			if err != nil {
				return err
			}
			return a.runCreate(cmd, rec, uploads, allowDuplicate)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file to read (default: stdin)")
	cmd.Flags().StringArrayVar(&attach, "attach", nil, "attach a file to a slot, as slot=path (repeatable)")
	cmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "save even when a record for the same date exists")
	return cmd
}

func (a *app) runCreate(cmd *cobra.Command, rec types.Record, uploads map[string][]attachments.SourceFile, allowDuplicate bool) error {
	ctx := cmd.Context()
	svc, err := a.service()
	if err != nil {
		return fail(err)
	}
	kind := rec.Kind()

	var id int64
	if kind == types.KindAttachment {
		if len(uploads) > 0 {
			return userErr(fmt.Errorf("attachment rows take no --attach files"))
		}
		tbl, err := svc.Store.GetTable(kind)
		if err != nil {
			return fail(err)
		}
		if id, err = tbl.Create(ctx, rec); err != nil {
			return fail(err)
		}
	} else {
		if err := rec.Normalize(); err != nil {
			return userErr(err)
		}
		existing, err := svc.ExistingForDate(ctx, kind, rec.DateKey())
		if err != nil {
			return fail(err)
		}
		if existing != nil {
			msg := fmt.Sprintf("a %s record for %s already exists (id %d)", kind, rec.DateKey(), existing.Head().ID)
			if !allowDuplicate {
				return userErr(fmt.Errorf("%s; pass --allow-duplicate to save another", msg))
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", msg)
		}
		if id, err = svc.Submit(ctx, rec, uploads); err != nil {
			return fail(err)
		}
	}

	if a.flags.jsonMode {
		stored, err := a.getRecord(cmd, kind, id)
		if err != nil {
			return err
		}
		return printJSON(cmd, stored)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %d\n", kind, id)
	return nil
}

func (a *app) newRecordGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Print one record as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindID(args)
			if err != nil {
				return err
			}
			rec, err := a.getRecord(cmd, kind, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
}

func (a *app) getRecord(cmd *cobra.Command, kind types.Kind, id int64) (types.Record, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, fail(err)
	}
	tbl, err := s.GetTable(kind)
	if err != nil {
		return nil, fail(err)
	}
	rec, err := tbl.Get(cmd.Context(), id)
	if err != nil {
		return nil, fail(err)
	}
	if rec == nil {
		return nil, userErr(fmt.Errorf("%s %d: %w", kind, id, types.ErrNotFound))
	}
	return rec, nil
}

func (a *app) newRecordListCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List records, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return userErr(err)
			}
			s, err := a.openStore()
			if err != nil {
				return fail(err)
			}
			tbl, err := s.GetTable(kind)
			if err != nil {
				return fail(err)
			}
			recs, err := tbl.List(cmd.Context(), limit, offset)
			if err != nil {
				return fail(err)
			}
			if recs == nil {
				recs = []types.Record{}
			}
			if a.flags.jsonMode {
				return printJSON(cmd, recs)
			}
			return printRecordTable(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", types.DefaultPageSize, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func printRecordTable(w io.Writer, recs []types.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSYNC\tCREATED")
	for _, r := range recs {
		h := r.Head()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", h.ID, r.DateKey(), h.SyncStatus, types.FormatTimestamp(h.CreatedAt))
	}
	return tw.Flush()
}

func (a *app) newRecordUpdateCmd() *cobra.Command {
	var (
		file string
		sets []string
	)
	cmd := &cobra.Command{
		Use:   "update <kind> <id>",
		Short: "Merge changes into a record",
		Long: `Update deep-merges a JSON object into the stored record. The object comes
from --file, from --set key=value pairs, or from stdin when neither is
given. Values given with --set are parsed as JSON when possible.

Example:
  paizhu record update weekly 3 --set notes="复查完成"
  paizhu record update daily 7 --file patch.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindID(args)
			if err != nil {
				return err
			}
			patch, err := buildPatch(cmd, file, sets)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return fail(err)
			}
			if err := svc.Update(cmd.Context(), kind, id, patch); err != nil {
				return fail(err)
			}
			if a.flags.jsonMode {
				rec, err := a.getRecord(cmd, kind, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %d\n", kind, id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON patch file")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a top-level field, as key=value (repeatable)")
	return cmd
}

func (a *app) newRecordDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a record and its attachment files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindID(args)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return fail(err)
			}
			if err := svc.Delete(cmd.Context(), kind, id); err != nil {
				return fail(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd, map[string]any{"deleted": true, "table": kind, "id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s: %d\n", kind, id)
			return nil
		},
	}
}

func parseKindID(args []string) (types.Kind, int64, error) {
	kind, err := types.ParseKind(args[0])
	if err != nil {
		return "", 0, userErr(err)
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, userErr(fmt.Errorf("%w: %q", types.ErrInvalidID, args[1]))
	}
	return kind, id, nil
}

// readInput returns the contents of file, or of stdin when file is empty
// or "-".
func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, userErr(fmt.Errorf("read input: %w", err))
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, userErr(fmt.Errorf("%w: empty input", types.ErrInvalidData))
	}
	return data, nil
}

func buildPatch(cmd *cobra.Command, file string, sets []string) (types.Patch, error) {
	patch := types.Patch{}
	if len(sets) == 0 || file != "" {
		data, err := readInput(cmd, file)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &patch); err != nil {
			return nil, userErr(fmt.Errorf("%w: patch is not a JSON object: %v", types.ErrInvalidData, err))
		}
	}
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, userErr(fmt.Errorf("invalid --set %q (expected key=value)", kv))
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		patch[key] = parsed
	}
	return patch, nil
}

// parseUploads groups slot=path arguments by slot.
func parseUploads(args []string) (map[string][]attachments.SourceFile, error) {
	if len(args) == 0 {
		return nil, nil
	}
	uploads := make(map[string][]attachments.SourceFile)
	for _, arg := range args {
		slot, path, ok := strings.Cut(arg, "=")
		if !ok || slot == "" || path == "" {
			return nil, userErr(fmt.Errorf("invalid --attach %q (expected slot=path)", arg))
		}
		uploads[slot] = append(uploads[slot], attachments.SourceFile{Path: path, Name: filepath.Base(path)})
	}
	return uploads, nil
}
