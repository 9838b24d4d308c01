// Package cli implements the devlife command-line client.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ErlanBelekov/devlife/internal/runner"
)

const DefaultServer = "http://localhost:8080"

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

type Options struct {
	// ConfigPath overrides ~/.devlife/config.json.
	ConfigPath string
	HTTPClient *http.Client
	Runner     *runner.Runner
	Logger     *slog.Logger
}

type app struct {
	opts   Options
	server string
}

func NewRootCommand(opts Options) *cobra.Command {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Runner == nil {
		opts.Runner = runner.New(opts.Logger)
	}
	a := &app{opts: opts}

	server := os.Getenv("DEVLIFE_SERVER")
	if server == "" {
		server = DefaultServer
	}

	root := &cobra.Command{
		Use:           "devlife",
		Short:         "Run devlife tasks locally and submit the results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "API base URL (or set DEVLIFE_SERVER)")

	root.AddCommand(a.authCommand(), a.listCommand(), a.submitCommand())
	return root
}

func (a *app) store() (*Store, error) {
	if a.opts.ConfigPath != "" {
		return NewStore(a.opts.ConfigPath), nil
	}
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return NewStore(path), nil
}

// authedClient returns a client carrying the stored token, or ErrUnauthorized when
// the user never signed in.
func (a *app) authedClient() (*Client, error) {
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, ErrUnauthorized
	}
	return NewClient(a.server, cfg.Token, a.opts.HTTPClient), nil
}

func (a *app) authCommand() *cobra.Command {
	var (
		email   string
		signOut bool
	)
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in with your devlife account, or sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if signOut {
				return a.signOut(cmd)
			}
			if email == "" {
				return errors.New("provide --email to sign in or --signout to sign out")
			}
			return a.signIn(cmd, email)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().BoolVarP(&signOut, "signout", "x", false, "forget the stored token")
	cmd.MarkFlagsMutuallyExclusive("email", "signout")
	return cmd
}

func (a *app) signIn(cmd *cobra.Command, email string) error {
	store, err := a.store()
	if err != nil {
		return err
	}
	cfg, err := store.Load()
	if err != nil {
		return err
	}
	if cfg.Token != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Already signed in")
		return nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	token, err := NewClient(a.server, "", a.opts.HTTPClient).SignIn(cmd.Context(), email, string(pw))
	if err != nil {
		return err
	}
	if err := store.Save(Config{Token: token}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), passStyle.Render("Signed in as "+email))
	return nil
}

func (a *app) signOut(cmd *cobra.Command) error {
	store, err := a.store()
	if err != nil {
		return err
	}
	cfg, err := store.Load()
	if err != nil {
		return err
	}
	if cfg.Token == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Already signed out")
		return nil
	}
	if err := store.Save(Config{}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.authedClient()
			if err != nil {
				return err
			}
			tasks, err := client.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
}

func (a *app) submitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <taskId> <file>",
		Short: "Run a solution against the task's tests and submit the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, file := args[0], args[1]
			ctx := cmd.Context()

			if _, err := os.Stat(file); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("file %s does not exist", file)
				}
				return err
			}
			if _, err := a.opts.Runner.Interpreter(file); err != nil {
				return err
			}

			client, err := a.authedClient()
			if err != nil {
				return err
			}
			task, err := client.GetTask(ctx, taskID)
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("task %q not found", taskID)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(task.Title))
			cases := task.Cases()
			report, err := a.opts.Runner.Run(ctx, file, cases)
			if err != nil {
				return err
			}
			for _, res := range report.Results {
				printResult(out, res, len(cases))
			}
			printSummary(out, report)

			if err := client.Submit(ctx, taskID, report.Status); err != nil {
				return fmt.Errorf("submit result: %w", err)
			}
			fmt.Fprintln(out, mutedStyle.Render("Submitted status "+strings.ToUpper(string(report.Status))))
			return nil
		},
	}
}
