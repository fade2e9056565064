// Command todoctl is a terminal client for the todo service.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/client"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

type app struct {
	apiURL      string
	sessionPath string

	store *client.SQLiteSessionStore
	api   *client.Client
	in    *bufio.Reader
	out   io.Writer
}

func main() {
	logger, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	a := &app{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := a.cli().RunContext(ctx, os.Args); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			logger.Sugar().Errorw("request failed", "status", apiErr.Status, "code", apiErr.Code, "message", apiErr.Message)
		} else {
			logger.Sugar().Errorw("todoctl failed", "error", err)
		}
		os.Exit(1)
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".todoctl/session.db"
	}
	return filepath.Join(home, ".todoctl", "session.db")
}

func (a *app) cli() *cli.App {
	return &cli.App{
		Name:  "todoctl",
		Usage: "Manage your todos from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "api",
				Usage:       "Base URL of the API, including the /api prefix",
				EnvVars:     []string{"TODO_API_URL"},
				Value:       "http://localhost:4000/api",
				Destination: &a.apiURL,
			},
			&cli.StringFlag{
				Name:        "session",
				Usage:       "Path of the local session database",
				EnvVars:     []string{"TODOCTL_SESSION"},
				Value:       defaultSessionPath(),
				Destination: &a.sessionPath,
			},
		},
		Before: func(c *cli.Context) error {
			store, err := client.OpenSQLiteSessionStore(c.Context, a.sessionPath)
			if err != nil {
				return err
			}
			a.store = store
			a.api = client.New(a.apiURL, store)
			return nil
		},
		After: func(c *cli.Context) error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		},
		Commands: []*cli.Command{
			a.signupCmd(),
			a.loginCmd(),
			a.logoutCmd(),
			a.whoamiCmd(),
			a.forgotCmd(),
			a.resetCmd(),
			a.todoCmd(),
		},
	}
}

// readSecret reads one line from stdin so passwords stay out of shell history.
func (a *app) readSecret(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("missing password from stdin")
	}
	return line, nil
}

func emailFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "email",
		Aliases:     []string{"e"},
		Usage:       "Account email",
		Destination: dst,
		Required:    true,
	}
}

func (a *app) signupCmd() *cli.Command {
	var name, email string
	return &cli.Command{
		Name:  "signup",
		Usage: "Create an account (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name", Destination: &name, Required: true},
			emailFlag(&email),
		},
		Action: func(c *cli.Context) error {
			pw, err := a.readSecret("Password: ")
			if err != nil {
				return err
			}
			u, err := a.api.Signup(c.Context, name, email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed up as %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
}

func (a *app) loginCmd() *cli.Command {
	var email string
	return &cli.Command{
		Name:  "login",
		Usage: "Log in (password is read from stdin)",
		Flags: []cli.Flag{emailFlag(&email)},
		Action: func(c *cli.Context) error {
			pw, err := a.readSecret("Password: ")
			if err != nil {
				return err
			}
			u, err := a.api.Login(c.Context, email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
}

func (a *app) logoutCmd() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the local session",
		Action: func(c *cli.Context) error {
			if err := a.api.Logout(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the logged in account",
		Action: func(c *cli.Context) error {
			u, err := a.api.Me(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s> (id %s)\n", u.Name, u.Email, u.ID)
			return nil
		},
	}
}

func (a *app) forgotCmd() *cli.Command {
	var email string
	return &cli.Command{
		Name:  "forgot-password",
		Usage: "Request a password reset link",
		Flags: []cli.Flag{emailFlag(&email)},
		Action: func(c *cli.Context) error {
			res, err := a.api.ForgotPassword(c.Context, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, res.Message)
			if res.ResetToken != "" {
				fmt.Fprintf(a.out, "Reset token: %s\n", res.ResetToken)
				if res.ExpiresAt != nil {
					fmt.Fprintf(a.out, "Expires at: %s\n", res.ExpiresAt.Local().Format("2006-01-02 15:04"))
				}
			}
			return nil
		},
	}
}

func (a *app) resetCmd() *cli.Command {
	var token string
	return &cli.Command{
		Name:  "reset-password",
		Usage: "Set a new password with a reset token (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", Aliases: []string{"t"}, Usage: "Reset token", Destination: &token, Required: true},
		},
		Action: func(c *cli.Context) error {
			pw, err := a.readSecret("New password: ")
			if err != nil {
				return err
			}
			msg, err := a.api.ResetPassword(c.Context, token, pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, msg)
			return nil
		},
	}
}
