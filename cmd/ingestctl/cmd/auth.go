package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginUsername     string
	loginPasswordFile string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the ingestion backend",
	Long: `Exchanges a username and password for an access token and stores it in the
configured credential store. The password is read from the terminal unless
--password-file is given ("-" reads stdin).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginUsername == "" {
			return errors.New("--username is required")
		}
		password, err := readPassword(loginPasswordFile)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		tok, err := a.session.Authenticate(cmd.Context(), loginUsername, password)
		if err != nil {
			return err
		}

		pterm.Success.Printf("Logged in as %s\n", loginUsername)
		if !tok.Expiry.IsZero() {
			pterm.Info.Printf("Token expires at %s\n", tok.Expiry.Local().Format(time.RFC1123))
		}
		if id := a.session.Identity(); id != nil {
			pterm.Info.Printf("Role: %s\n", id.Role)
		} else {
			pterm.Warning.Println("The backend did not return your profile; the session was not kept.")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		a.session.SignOut(cmd.Context())
		pterm.Success.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restoredApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if !a.session.IsAuthenticated() {
			pterm.Info.Println("Not logged in")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Guard.ResolveTimeout)
		defer cancel()
		id, err := a.session.CurrentIdentity().Latest(ctx)
		if err != nil {
			return fmt.Errorf("resolve identity: %w", err)
		}
		if id == nil {
			pterm.Warning.Println("Stored credential was rejected; you have been logged out")
			return nil
		}

		pterm.DefaultSection.Println("Identity")
		return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"ID", "USERNAME", "EMAIL", "ROLE", "ACTIVE"},
			{id.ID.String(), id.Username, id.Email, string(id.Role), fmt.Sprint(id.Active)},
		}).Render()
	},
}

// readPassword reads from file, or from stdin when file is "-", or prompts
// on the terminal with echo disabled when file is empty.
func readPassword(file string) (string, error) {
	switch file {
	case "":
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", errors.New("no terminal available for the password prompt (use --password-file)")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	case "-":
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(string(raw), "\r\n"), nil
	default:
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		return strings.TrimRight(string(raw), "\r\n"), nil
	}
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Account username")
	loginCmd.Flags().StringVar(&loginPasswordFile, "password-file", "", `File holding the password, "-" for stdin`)
}
