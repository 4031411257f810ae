package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/api"
	"github.com/brianly1003/aidev/internal/app"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/views/login"
	"github.com/brianly1003/aidev/internal/views/navbar"
)

var (
	authUsername      string
	authPasswordStdin bool
	registerEmail     string
	registerFullName  string
)

// loginCmd logs in and saves the session.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the assistant backend",
	Long: `Log in and save the session under ~/.aidev.

Missing credentials are prompted for. Use --password-stdin to read the
password from standard input in scripts.

Examples:
  aidev login
  aidev login -u alice
  echo "$PW" | aidev login -u alice --password-stdin`,
	RunE: runLogin,
}

// logoutCmd ends the saved session.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
			user := a.Store().Username()
			a.Store().Logout()
			if user == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s\n", user)
			return nil
		})
	},
}

// whoamiCmd prints the logged-in user.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
			bar := navbar.New(a.Store())
			defer bar.Close()

			fmt.Fprintln(cmd.OutOrStdout(), bar.Greeting())
			if !bar.LoggedIn() {
				return domain.ErrNoSession
			}
			return nil
		})
	},
}

// registerCmd creates an account.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the assistant backend",
	RunE:  runRegister,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(registerCmd)

	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authUsername, "username", "u", "", "username (prompted when empty)")
		c.Flags().BoolVar(&authPasswordStdin, "password-stdin", false, "read the password from stdin")
	}
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "email address")
	registerCmd.Flags().StringVar(&registerFullName, "full-name", "", "full name")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username, password, err := readCredentials(cmd.InOrStdin())
	if err != nil {
		return err
	}

	return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
		form := login.New(a.Store(), "")
		defer form.Close()

		if err := form.Submit(ctx, username, password); err != nil {
			return fmt.Errorf("%s: %w", form.Error(), err)
		}

		bar := navbar.New(a.Store())
		defer bar.Close()
		fmt.Fprintln(cmd.OutOrStdout(), bar.Greeting())
		return nil
	})
}

func runRegister(cmd *cobra.Command, args []string) error {
	username, password, err := readCredentials(cmd.InOrStdin())
	if err != nil {
		return err
	}

	return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
		created, err := a.Client().Register(ctx, api.User{
			Username: username,
			Password: password,
			Email:    registerEmail,
			FullName: registerFullName,
		})
		if err != nil {
			return fmt.Errorf("failed to register: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run 'aidev login' to log in.\n", created.Username)
		return nil
	})
}

// readCredentials takes the username from the flag and the password from
// stdin when --password-stdin is set, prompting for whatever is missing.
func readCredentials(stdin io.Reader) (string, string, error) {
	username := strings.TrimSpace(authUsername)
	var password string

	if authPasswordStdin {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
		if username == "" {
			return "", "", domain.NewValidationError("username", "required with --password-stdin")
		}
		return username, password, nil
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if username == "" {
		u, err := line.Prompt("Username: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(u)
	}
	p, err := line.PasswordPrompt("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	return username, p, nil
}
