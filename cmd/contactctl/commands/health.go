package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/benvon/contact-relay/internal/handlers"
	"github.com/spf13/cobra"
)

// ErrNotReady is returned when the relay reports itself not ready
var ErrNotReady = errors.New("contact relay is not ready")

// NewHealthCmd creates the health command
func NewHealthCmd() *cobra.Command {
	var (
		url      string
		extended bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the contact relay",
		Long:  "Query the readiness probe of a running relay and report missing mail settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := apiURL(url)
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: 10 * time.Second}
			return runHealth(cmd.Context(), client, base, extended, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Base URL of the relay (default CONTACT_API_URL)")
	cmd.Flags().BoolVar(&extended, "extended", false, "Also run dependency checks")

	return cmd
}

func runHealth(ctx context.Context, client *http.Client, base string, extended bool, out io.Writer) error {
	endpoint := base + "/api/contact"
	if extended {
		endpoint += "?mode=extended"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", endpoint, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
		}
	}()

	var health handlers.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}

	fmt.Fprintf(out, "Service: %s\n", health.Service)
	fmt.Fprintf(out, "Checked at: %s\n", health.Timestamp)
	if len(health.Missing) == 0 {
		fmt.Fprintln(out, "✓ Mail transport configured")
	} else {
		fmt.Fprintln(out, "✗ Missing configuration:")
		for _, key := range health.Missing {
			fmt.Fprintf(out, "  - %s\n", key)
		}
	}

	names := make([]string, 0, len(health.Checks))
	for name := range health.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %s\n", name, health.Checks[name])
	}

	if !health.OK {
		return ErrNotReady
	}
	fmt.Fprintln(out, "✓ Ready")
	return nil
}
