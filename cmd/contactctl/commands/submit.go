package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benvon/contact-relay/internal/intake"
	"github.com/benvon/contact-relay/internal/models"
	"github.com/benvon/contact-relay/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const formID = "contact"

// formField is one prompt of the terminal form, in display order
type formField struct {
	key      models.FieldKey
	label    string
	required bool
}

var formFields = []formField{
	{key: models.FieldName, label: "Name", required: true},
	{key: models.FieldEmail, label: "Email", required: true},
	{key: intake.FieldCompany, label: "Company"},
	{key: intake.FieldBudget, label: "Estimated budget"},
	{key: models.FieldMessage, label: "Message", required: true},
}

// NewSubmitCmd creates the submit command
func NewSubmitCmd() *cobra.Command {
	var (
		url    string
		values = map[models.FieldKey]*string{}
	)
	for _, f := range formFields {
		values[f.key] = new(string)
	}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send a submission through the contact form client",
		Long:  "Fill in the contact form from flags or prompts and send it to a running relay, applying the same checks as the website",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := apiURL(url)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			filled := make(map[models.FieldKey]string, len(values))
			for key, v := range values {
				filled[key] = *v
			}
			if err := promptMissing(cmd.InOrStdin(), cmd.OutOrStdout(), filled); err != nil {
				return err
			}

			submitter := intake.NewHTTPSubmitter(base+"/api/contact", nil)
			outcome, err := runSubmit(cmd.Context(), cmd.OutOrStdout(), submitter, filled, time.Now, log)
			if err != nil {
				return err
			}
			if !outcome.Delivered {
				return errors.New(outcome.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Base URL of the relay (default CONTACT_API_URL)")
	cmd.Flags().StringVar(values[models.FieldName], "name", "", "Your name")
	cmd.Flags().StringVar(values[models.FieldEmail], "email", "", "Your email address")
	cmd.Flags().StringVar(values[intake.FieldCompany], "company", "", "Company (optional)")
	cmd.Flags().StringVar(values[intake.FieldBudget], "budget", "", "Estimated budget (optional)")
	cmd.Flags().StringVar(values[models.FieldMessage], "message", "", "Message")

	return cmd
}

// promptMissing asks for every required field left empty
func promptMissing(in io.Reader, out io.Writer, values map[models.FieldKey]string) error {
	var reader *bufio.Reader
	for _, f := range formFields {
		if !f.required || strings.TrimSpace(values[f.key]) != "" {
			continue
		}
		if reader == nil {
			reader = bufio.NewReader(in)
		}
		fmt.Fprintf(out, "%s: ", f.label)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read %s: %w", f.key, err)
		}
		values[f.key] = strings.TrimSpace(line)
	}
	return nil
}

// runSubmit drives one form through the intake guard. The send waits until
// the minimum fill time has passed since the form was opened.
func runSubmit(ctx context.Context, out io.Writer, submitter intake.Submitter, values map[models.FieldKey]string, now func() time.Time, log *zap.Logger) (intake.Outcome, error) {
	registry := intake.NewRegistry(submitter,
		intake.WithClock(now),
		intake.WithLogger(log),
		intake.WithAfterFunc(func(time.Duration, func()) intake.Timer { return noopTimer{} }),
	)
	registry.Setup(intake.Binding{ID: formID, View: newTerminalView(out)})
	guard, _ := registry.Guard(formID)

	for _, f := range formFields {
		guard.Input(f.key, values[f.key])
	}

	opened := time.UnixMilli(guard.StartedAt())
	if wait := validation.MinFillTime - now().Sub(opened); wait > 0 {
		select {
		case <-ctx.Done():
			return intake.Outcome{}, ctx.Err()
		case <-time.After(wait):
		}
	}

	return registry.Click(ctx, formID)
}

// noopTimer stands in for the success revert; the command exits right after
type noopTimer struct{}

func (noopTimer) Stop() bool { return false }
