package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey/mail-sentinel/internal/adapters/gmailsource"
	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/credential"
	"github.com/mikey/mail-sentinel/internal/di"
	"github.com/mikey/mail-sentinel/internal/factory"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage mailbox and channel credentials",
	}
	cmd.AddCommand(authGmailCmd())
	cmd.AddCommand(authSetCmd())
	return cmd
}

func authGmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmail <account>",
		Short: "Authorize a Gmail account and store its OAuth token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configPath)
			if err != nil {
				return err
			}
			accounts, err := cfg.GetMailboxes()
			if err != nil {
				return err
			}
			name := strings.ToLower(args[0])
			for _, acct := range accounts {
				if acct.Name != name {
					continue
				}
				if acct.Type != "gmail" {
					return fmt.Errorf("account %s is not a gmail account", name)
				}
				return gmailsource.Authorize(cmd.Context(), acct.CredentialsFile, factory.GmailTokenFile(acct),
					cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return fmt.Errorf("account %s not found in configuration", name)
		},
	}
}

func authSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <mailbox|channel> <name>",
		Short: "Store a mailbox password or channel token in the system keyring",
		Long: `Reads the secret from stdin and stores it in the keyring so it can be
left out of the config file. Examples:
  sentinel auth set mailbox work
  sentinel auth set channel telegram`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			switch args[0] {
			case "mailbox":
				key = credential.MailboxPasswordKey(strings.ToLower(args[1]))
			case "channel":
				key = credential.ChannelTokenKey(args[1])
			default:
				return fmt.Errorf("unknown credential kind %q", args[0])
			}

			container, err := di.BuildContainer(configPath)
			if err != nil {
				return fmt.Errorf("failed to build container: %w", err)
			}
			return container.Invoke(func(store credential.Store) error {
				secret, err := readInput("", cmd.InOrStdin())
				if err != nil {
					return err
				}
				value := strings.TrimSpace(string(secret))
				if value == "" {
					return fmt.Errorf("empty secret")
				}
				if err := store.Set(key, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", key)
				return nil
			})
		},
	}
}
