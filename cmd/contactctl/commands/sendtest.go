package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benvon/contact-relay/internal/config"
	"github.com/benvon/contact-relay/internal/mailer"
	"github.com/benvon/contact-relay/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSendTestCmd creates the send-test command
func NewSendTestCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send a sample notification through the configured SMTP server",
		Long:  "Compose a sample contact notification and deliver it with the same primary and backup rules the relay uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			mail := config.LoadMail()
			transport := mailer.NewTransportFromConfig(mail)
			if transport == nil {
				_, absent := mail.Ready()
				return fmt.Errorf("mail transport not configured, absent: %v", absent)
			}

			log, err := newLogger(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*mail.Timeout+5*time.Second)
			defer cancel()

			return runSendTest(ctx, cmd.OutOrStdout(), transport, mail, sampleSubmission(name, email), log)
		},
	}

	cmd.Flags().StringVar(&name, "name", "Relay Test", "Sender name on the sample submission")
	cmd.Flags().StringVar(&email, "email", "", "Reply-to address on the sample submission (default CONTACT_FROM)")

	return cmd
}

func sampleSubmission(name, email string) models.Submission {
	return models.Submission{
		Name:    name,
		Email:   email,
		Company: "contactctl",
		Message: "This is a test notification sent by contactctl send-test.\nNo reply is needed.",
	}
}

func runSendTest(ctx context.Context, out io.Writer, transport mailer.Transport, mail config.MailConfig, sub models.Submission, log *zap.Logger) error {
	if sub.Email == "" {
		sub.Email = mail.From
	}
	deliverer := mailer.NewDeliverer(transport, mail.To, mail.ToBackup, log)

	fmt.Fprintf(out, "Sending test notification to %s\n", mail.To)
	result, err := deliverer.Deliver(ctx, mailer.Compose(sub))
	if err != nil {
		fmt.Fprintf(out, "✗ Delivery failed after %d attempt(s)\n", result.Attempts)
		return err
	}
	fmt.Fprintf(out, "✓ Delivered to %s recipient after %d attempt(s)\n", result.Recipient, result.Attempts)
	return nil
}
