package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/class-schedule/internal/app"
	"github.com/noah-isme/class-schedule/internal/models"
)

var fieldFlags = []struct {
	name  string
	usage string
}{
	{"subject", "subject name"},
	{"time", "time slot, e.g. 10:00"},
	{"day", "day of the week"},
	{"room", "room"},
	{"instructor", "instructor name"},
}

func addFieldFlags(cmd *cobra.Command) {
	for _, f := range fieldFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
}

// applyFieldFlags overlays the flags the user actually set onto in.
func applyFieldFlags(cmd *cobra.Command, in models.ClassInput) models.ClassInput {
	set := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	set("subject", &in.Subject)
	set("time", &in.Time)
	set("day", &in.Day)
	set("room", &in.Room)
	set("instructor", &in.Instructor)
	return in
}

func anyFieldChanged(cmd *cobra.Command) bool {
	for _, f := range fieldFlags {
		if cmd.Flags().Changed(f.name) {
			return true
		}
	}
	return false
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid class id %q", raw)
	}
	return id, nil
}

func newListCommand(rt *runtime) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.ctrl.SetFilter(day)
			err := rt.busy(cmd, "Loading classes...", rt.ctrl.Reload)
			if err != nil {
				return rt.report(cmd, err)
			}
			app.WriteTable(cmd.OutOrStdout(), app.Render(rt.ctrl.State().Records), rt.tty)
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "only classes held on this day")
	return cmd
}

func newGetCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var class *models.Class
			err = rt.busy(cmd, "Loading class...", func(ctx context.Context) error {
				class, err = rt.api.GetClass(ctx, id)
				return err
			})
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return reportedError{err}
			}
			app.WriteTable(cmd.OutOrStdout(), app.Render([]models.Class{*class}), rt.tty)
			return nil
		},
	}
}

func newAddCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := applyFieldFlags(cmd, models.ClassInput{})
			rt.ctrl.SetAddForm(in)
			err := rt.busy(cmd, "Adding class...", func(ctx context.Context) error {
				return rt.ctrl.Add(ctx, in)
			})
			return rt.report(cmd, err)
		},
	}
	addFieldFlags(cmd)
	return cmd
}

func newEditCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of an existing class",
		Long:  "Loads the class, overrides the fields given as flags and saves it. Unset flags keep their value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var found bool
			err = rt.busy(cmd, "Loading class...", func(ctx context.Context) error {
				found, err = rt.ctrl.BeginEdit(ctx, id)
				return err
			})
			if err != nil {
				return rt.report(cmd, err)
			}
			if !found {
				err := fmt.Errorf("class %d not found", id)
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return reportedError{err}
			}

			if !anyFieldChanged(cmd) {
				rt.ctrl.CloseModal()
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to change.")
				return nil
			}

			in := applyFieldFlags(cmd, rt.ctrl.State().Modal.Fields)
			err = rt.busy(cmd, "Saving class...", func(ctx context.Context) error {
				return rt.ctrl.SubmitUpdate(ctx, in)
			})
			return rt.report(cmd, err)
		},
	}
	addFieldFlags(cmd)
	return cmd
}

func newDeleteCommand(rt *runtime) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var confirm app.Confirmer = promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			if yes {
				confirm = app.ConfirmFunc(func(string) bool { return true })
			}
			deleted, err := rt.ctrl.Delete(cmdContext(cmd), id, confirm)
			if err == nil && !deleted {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			return rt.report(cmd, err)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newExportCommand(rt *runtime) *cobra.Command {
	var (
		format string
		day    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the schedule as CSV or PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "csv" && format != "pdf" {
				return fmt.Errorf("format must be csv or pdf, got %q", format)
			}
			if format == "pdf" && output == "" {
				return errors.New("--output is required for pdf exports")
			}
			var body []byte
			var filename string
			err := rt.busy(cmd, "Exporting schedule...", func(ctx context.Context) error {
				dl, err := rt.api.Export(ctx, format, day)
				if err != nil {
					return err
				}
				body, filename = dl.Body, dl.Filename
				return nil
			})
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return reportedError{err}
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			if !rt.quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes, server name %s)\n", output, len(body), filename)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or pdf")
	cmd.Flags().StringVar(&day, "day", "", "only classes held on this day")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write; stdout when empty (csv only)")
	return cmd
}

// promptConfirmer asks a y/N question on the command's streams.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
