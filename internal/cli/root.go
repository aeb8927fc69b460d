// Package cli implements schedulectl, a terminal front end for the class
// schedule API.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/noah-isme/class-schedule/internal/app"
	"github.com/noah-isme/class-schedule/internal/client"
)

const envPrefix = "SCHEDULECTL"

// runtime carries the per-invocation dependencies shared by subcommands.
type runtime struct {
	v     *viper.Viper
	ctrl  *app.Controller
	api   *client.Client
	tty   bool
	quiet bool
}

// NewRootCommand builds the schedulectl command tree.
func NewRootCommand() *cobra.Command {
	rt := &runtime{v: viper.New()}

	root := &cobra.Command{
		Use:           "schedulectl",
		Short:         "Manage the class schedule from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080", "class schedule server URL")
	flags.Duration("timeout", client.DefaultTimeout, "per-request timeout")
	flags.BoolP("quiet", "q", false, "suppress spinners and notices")
	_ = rt.v.BindPFlags(flags)
	rt.v.SetEnvPrefix(envPrefix)
	rt.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	rt.v.AutomaticEnv()

	root.AddCommand(
		newListCommand(rt),
		newGetCommand(rt),
		newAddCommand(rt),
		newEditCommand(rt),
		newDeleteCommand(rt),
		newExportCommand(rt),
	)
	return root
}

// reportedError marks an error that has already been shown to the user.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Execute runs schedulectl and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		var shown reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func (rt *runtime) init(cmd *cobra.Command) error {
	api, err := client.New(rt.v.GetString("server"), client.WithTimeout(rt.v.GetDuration("timeout")))
	if err != nil {
		return err
	}
	rt.api = api
	rt.ctrl = app.NewController(api, zap.NewNop())
	rt.quiet = rt.v.GetBool("quiet")
	rt.tty = isTerminal(cmd.OutOrStdout())
	return nil
}

// busy runs fn with a spinner on interactive terminals.
func (rt *runtime) busy(cmd *cobra.Command, label string, fn func(ctx context.Context) error) error {
	ctx := cmdContext(cmd)
	if rt.quiet || !rt.tty {
		return fn(ctx)
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " " + label
	s.Start()
	err := fn(ctx)
	s.Stop()
	return err
}

// report prints the controller's notice or error after a mutation.
func (rt *runtime) report(cmd *cobra.Command, err error) error {
	st := rt.ctrl.State()
	if err != nil {
		msg := st.Error
		if msg == "" {
			msg = err.Error()
		}
		if rt.tty {
			msg = text.FgRed.Sprint(msg)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
		return reportedError{err}
	}
	if st.Notice != "" && !rt.quiet {
		notice := st.Notice
		if rt.tty {
			notice = text.FgGreen.Sprint(notice)
		}
		fmt.Fprintln(cmd.OutOrStdout(), notice)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
