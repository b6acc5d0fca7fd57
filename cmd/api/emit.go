package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"tenanthooks/internal/buildinfo"
	"tenanthooks/internal/webhooks"
)

// newEmitCmd dispatches one event synchronously and prints the summary. It is
// an operator tool for checking subscriber endpoints.
func newEmitCmd() *cobra.Command {
	var tenant, data string

	cmd := &cobra.Command{
		Use:   "emit <eventType>",
		Short: "Dispatch one event to the tenant's subscribers and print the summary",
		Long: "Dispatch one event to the tenant's subscribers and print the summary.\n\n" +
			"Well-known event types:\n  " + strings.Join(wellKnownEvents, "\n  ") +
			"\n\nAny other name is dispatched as given.",
		Example: `  api emit user.created --tenant t_demo --data '{"id":"u1","email":"a@example.com"}'
  api emit integration_key.revoked --tenant t_demo --data '{"id":"k1"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload any
			if data != "" {
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("--data is not valid JSON: %w", err)
				}
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := buildDeps(cfg, false)
			if err != nil {
				return err
			}
			defer d.Close()

			sum, err := emitFunc(d.dispatcher, args[0])(cmd.Context(), tenant, payload)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id (required)")
	cmd.Flags().StringVar(&data, "data", "", "Event data as JSON")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

var wellKnownEvents = []string{
	webhooks.EventPartnerCreated,
	webhooks.EventPartnerUpdated,
	webhooks.EventPartnerDeleted,
	webhooks.EventUserCreated,
	webhooks.EventUserUpdated,
	webhooks.EventIntegrationKeyCreated,
	webhooks.EventIntegrationKeyRevoked,
}

type emitter func(ctx context.Context, tenantID string, data any) (webhooks.Summary, error)

// emitFunc picks the named dispatcher method for well-known event types.
func emitFunc(d *webhooks.Dispatcher, eventType string) emitter {
	switch eventType {
	case webhooks.EventPartnerCreated:
		return d.PartnerCreated
	case webhooks.EventPartnerUpdated:
		return d.PartnerUpdated
	case webhooks.EventPartnerDeleted:
		return d.PartnerDeleted
	case webhooks.EventUserCreated:
		return d.UserCreated
	case webhooks.EventUserUpdated:
		return d.UserUpdated
	case webhooks.EventIntegrationKeyCreated:
		return d.IntegrationKeyCreated
	case webhooks.EventIntegrationKeyRevoked:
		return d.IntegrationKeyRevoked
	}
	return func(ctx context.Context, tenantID string, data any) (webhooks.Summary, error) {
		return d.Dispatch(ctx, eventType, tenantID, data)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(buildinfo.Info())
		},
	}
}
