package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/runop/config"
)

const redacted = "********"

// redact returns a copy of cnf with secrets masked.
func redact(cnf *config.Configuration) config.Configuration {
	out := *cnf
	if out.Keys.Funding != "" {
		out.Keys.Funding = redacted
	}
	if out.Keys.Owner != "" {
		out.Keys.Owner = redacted
	}
	if out.DataSource.Dns != "" {
		out.DataSource.Dns = redacted
	}
	if out.Redis.Dns != "" {
		out.Redis.Dns = redacted
	}
	if out.Notification.Slack.WebhookUrl != "" {
		out.Notification.Slack.WebhookUrl = redacted
	}
	return out
}

func configCommands(b *runopInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config outputs your instance's computed configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(redact(b.cnf), "", "    ")
			if err != nil {
				return fmt.Errorf("error printing config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	return cmd
}
