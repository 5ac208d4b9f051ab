package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/benvon/contact-relay/internal/config"
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Check local mail configuration",
		Long:  "Report which SMTP and recipient variables are missing from the current environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd.OutOrStdout(), config.LoadMail())
		},
	}
}

func runConfig(out io.Writer, mail config.MailConfig) error {
	fmt.Fprintf(out, "SMTP host: %s\n", valueOrUnset(mail.Host))
	fmt.Fprintf(out, "SMTP port: %d\n", mail.Port)
	fmt.Fprintf(out, "Sender: %s <%s>\n", mail.FromName, valueOrUnset(mail.From))
	fmt.Fprintf(out, "Recipient: %s\n", valueOrUnset(mail.To))
	fmt.Fprintf(out, "Backup recipient: %s\n", valueOrUnset(mail.ToBackup))
	fmt.Fprintf(out, "Timeout: %s\n", mail.Timeout)

	missing := mail.MissingKeys()
	ready, absent := mail.Ready()
	if len(missing) == 0 && ready {
		fmt.Fprintln(out, "✓ Mail transport ready")
		return nil
	}

	fmt.Fprintln(out, "✗ Mail transport not ready")
	for _, key := range missing {
		fmt.Fprintf(out, "  - %s is not set\n", key)
	}
	if len(absent) > 0 {
		fmt.Fprintf(out, "  absent settings: %s\n", strings.Join(absent, ", "))
	}
	return fmt.Errorf("mail configuration incomplete")
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
