package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/bazarteer/bazaar/internal/account"
)

var (
	loginUsername string
	loginPassword string

	signupName     string
	signupSurname  string
	signupUsername string
	signupPassword string
	signupConfirm  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		username, err := p.ask("Username", loginUsername)
		if err != nil {
			return err
		}
		password, err := p.secret("Password", loginPassword)
		if err != nil {
			return err
		}

		svc := account.New(client, sessions, logger)
		s, err := svc.Login(cmd.Context(), account.Credentials{Username: username, Password: password})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Signed in as %s\n", s.Username)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		form := account.SignupForm{}
		var err error
		fields := []struct {
			prompt string
			flag   string
			dst    *string
			secret bool
		}{
			{"Name", signupName, &form.Name, false},
			{"Surname", signupSurname, &form.Surname, false},
			{"Username", signupUsername, &form.Username, false},
			{"Password", signupPassword, &form.Password, true},
			{"Confirm password", signupConfirm, &form.ConfirmPassword, true},
		}
		for _, f := range fields {
			if f.secret {
				*f.dst, err = p.secret(f.prompt, f.flag)
			} else {
				*f.dst, err = p.ask(f.prompt, f.flag)
			}
			if err != nil {
				return err
			}
		}

		svc := account.New(client, sessions, logger)
		s, err := svc.Signup(cmd.Context(), form)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Welcome to bazaar, %s\n", s.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := account.New(client, sessions, logger).Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

// prompter fills in values not given as flags. It only prompts on an
// interactive terminal; otherwise a missing value stays empty and
// validation reports it.
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{
		in:          bufio.NewReader(cmd.InOrStdin()),
		out:         cmd.OutOrStdout(),
		interactive: cmd.InOrStdin() == os.Stdin && term.IsTerminal(os.Stdin.Fd()),
	}
}

func (p *prompter) ask(label, given string) (string, error) {
	if given != "" || !p.interactive {
		return given, nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) secret(label, given string) (string, error) {
	if given != "" || !p.interactive {
		return given, nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(os.Stdin.Fd())
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// confirm asks a yes/no question. Non-interactive runs answer yes.
func (p *prompter) confirm(question string) (bool, error) {
	if !p.interactive {
		return true, nil
	}
	ans, err := p.ask(question+" [y/N]", "")
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes", nil
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")

	signupCmd.Flags().StringVar(&signupName, "name", "", "First name")
	signupCmd.Flags().StringVar(&signupSurname, "surname", "", "Surname")
	signupCmd.Flags().StringVarP(&signupUsername, "username", "u", "", "Username")
	signupCmd.Flags().StringVarP(&signupPassword, "password", "p", "", "Password (prompted when omitted)")
	signupCmd.Flags().StringVar(&signupConfirm, "confirm-password", "", "Password again (prompted when omitted)")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd)
}
