package main

import (
	"fmt"
	"os"

	"github.com/benvon/contact-relay/cmd/contactctl/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "contactctl",
		Short: "Operator tool for the contact relay",
		Long:  "CLI tool for probing the contact relay, checking mail configuration and sending test submissions",
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(commands.NewHealthCmd())
	rootCmd.AddCommand(commands.NewConfigCmd())
	rootCmd.AddCommand(commands.NewSubmitCmd())
	rootCmd.AddCommand(commands.NewSendTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
