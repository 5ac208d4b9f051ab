package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/contact-relay/internal/config"
	"github.com/benvon/contact-relay/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newLogger builds a console logger honouring the root --debug flag
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	debug, err := cmd.Root().PersistentFlags().GetBool("debug")
	if err != nil {
		debug = false
	}
	return logger.NewDevelopmentLogger(debug)
}

// apiURL resolves the base URL of the relay: the flag wins over CONTACT_API_URL
func apiURL(flagValue string) (string, error) {
	if flagValue != "" {
		return strings.TrimRight(flagValue, "/"), nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return strings.TrimRight(cfg.ContactAPIURL, "/"), nil
}
