// Package authcmder provides the auth command for storing agent API tokens.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/runstream/pkg/cliui"
	"github.com/papercomputeco/runstream/pkg/credentials"
)

const authLongDesc string = `Store bearer tokens for agent APIs.

Tokens are stored per host in credentials.toml in the .runstream/ directory
and sent as "Authorization: Bearer <token>" when "runstream watch" opens a
run stream on that host. An explicit -H "Authorization: ..." header always
wins. RUNSTREAM_TOKEN is used for hosts without a stored token.

Examples:
  runstream auth agents.example.com             Prompt for a token
  echo $TOKEN | runstream auth agents.example.com
  runstream auth https://agents.example.com/api Store by URL host
  runstream auth --list                         List hosts with tokens
  runstream auth --remove agents.example.com    Remove a stored token`

const authShortDesc string = "Store bearer tokens for agent APIs"

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "auth [host]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			w := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(w, configDir)
			case removeFlag != "":
				return runRemove(w, removeFlag, configDir)
			default:
				if len(args) == 0 {
					return errors.New("host argument required")
				}
				return runAuth(w, cmd.InOrStdin(), args[0], configDir)
			}
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List hosts with stored tokens")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove the stored token for a host")

	return cmd
}

func runAuth(w io.Writer, in io.Reader, host, configDir string) error {
	host, err := credentials.NormalizeHost(host)
	if err != nil {
		return err
	}

	token, err := readToken(w, in, host)
	if err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetToken(host, token); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Stored token for %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(host),
	)
	return nil
}

func runList(w io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	hosts, err := mgr.ListHosts()
	if err != nil {
		return err
	}

	if len(hosts) == 0 {
		fmt.Fprintf(w, "\n  %s No stored tokens.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(w, "  Use 'runstream auth <host>' to store one.\n\n")
		return nil
	}

	fmt.Fprintf(w, "\n  %s\n\n", cliui.KeyStyle.Render("Stored tokens"))
	for _, h := range hosts {
		fmt.Fprintf(w, "  %s  %s\n", cliui.SuccessMark, cliui.NameStyle.Render(h))
	}
	fmt.Fprintln(w)

	return nil
}

func runRemove(w io.Writer, host, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveToken(host); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Removed token for %s.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(host))

	return nil
}

// readToken reads a token from in. Piped input yields its first line; a
// terminal is prompted with hidden input.
func readToken(w io.Writer, in io.Reader, host string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(w, "Enter token for %s: ", host)

		tokenBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(tokenBytes), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
