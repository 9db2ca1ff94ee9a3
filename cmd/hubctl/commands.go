package main

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newDispatchCommand() *cobra.Command {
	var contextPairs []string
	cmd := &cobra.Command{
		Use:   "dispatch <intent>",
		Short: "Dispatch an intent for a tenant",
		Example: `  hubctl dispatch pricing -t tenant-1 -c property_id=p1 -c current_price=100
  hubctl dispatch cleaning -t tenant-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(); err != nil {
				return err
			}
			reqCtx, err := parseContext(contextPairs)
			if err != nil {
				return err
			}
			data, err := newClient().post("/api/v1/dispatch", map[string]any{
				"tenant_id": tenantID,
				"intent":    args[0],
				"context":   reqCtx,
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&contextPairs, "context", "c", nil, "Context entry as key=value (repeatable)")
	return cmd
}

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <message>",
		Short: "Classify a free-text message into an intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(); err != nil {
				return err
			}
			data, err := newClient().post("/api/v1/classify", map[string]any{
				"tenant_id": tenantID,
				"message":   args[0],
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a chat message (proposes or dispatches per tenant mode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(); err != nil {
				return err
			}
			data, err := newClient().post("/api/v1/chat", map[string]any{
				"tenant_id": tenantID,
				"message":   args[0],
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

func newActionsCommand() *cobra.Command {
	var status, limit string
	cmd := &cobra.Command{
		Use:   "actions [action-id]",
		Short: "List recent actions or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if len(args) == 1 {
				data, err := client.get("/api/v1/actions/"+args[0], nil)
				if err != nil {
					return err
				}
				outputJSON(data)
				return nil
			}

			if err := requireTenant(); err != nil {
				return err
			}
			params := url.Values{"tenant_id": {tenantID}}
			if status != "" {
				params.Set("status", status)
			}
			if limit != "" {
				params.Set("limit", limit)
			}
			data, err := client.get("/api/v1/actions", params)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending, completed, error")
	cmd.Flags().StringVar(&limit, "limit", "", "Maximum rows")
	return cmd
}

func newContextCommand() *cobra.Command {
	var updatePairs []string
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show or update tenant state",
		Example: `  hubctl context -t tenant-1
  hubctl context -t tenant-1 -u occupancy_rate=25 -u season=alta`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(); err != nil {
				return err
			}
			client := newClient()

			if len(updatePairs) > 0 {
				updates, err := parseContext(updatePairs)
				if err != nil {
					return err
				}
				data, err := client.post("/api/v1/context", map[string]any{
					"tenant_id": tenantID,
					"updates":   updates,
				})
				if err != nil {
					return err
				}
				outputJSON(data)
				return nil
			}

			data, err := client.get("/api/v1/context", url.Values{"tenant_id": {tenantID}})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&updatePairs, "update", "u", nil, "State update as key=value (repeatable)")
	return cmd
}

func newMemoryCommand() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Show tenant memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(); err != nil {
				return err
			}
			params := url.Values{"tenant_id": {tenantID}}
			if scope != "" {
				params.Set("scope", scope)
			}
			data, err := newClient().get("/api/v1/memory", params)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Memory scope: recent (default), longterm, full")
	return cmd
}

func newProposalsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "Manage pending action proposals",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(); err != nil {
				return err
			}
			data, err := newClient().get("/api/v1/proposals", url.Values{"tenant_id": {tenantID}})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "accept <proposal-id>",
		Short: "Accept a proposal and dispatch its intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().post("/api/v1/proposals/"+args[0]+"/accept", nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reject <proposal-id>",
		Short: "Reject a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().post("/api/v1/proposals/"+args[0]+"/reject", nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	})

	return cmd
}

func newEventsCommand() *cobra.Command {
	var trigger, nextAgent string
	var paramPairs []string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List pending events or schedule one",
		Example: `  hubctl events -t tenant-1
  hubctl events -t tenant-1 --trigger post_checkin --next-agent upsell`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(); err != nil {
				return err
			}
			client := newClient()

			if trigger != "" || nextAgent != "" {
				params, err := parseContext(paramPairs)
				if err != nil {
					return err
				}
				data, err := client.post("/api/v1/events", map[string]any{
					"tenant_id":  tenantID,
					"trigger":    trigger,
					"next_agent": nextAgent,
					"params":     params,
				})
				if err != nil {
					return err
				}
				outputJSON(data)
				return nil
			}

			data, err := client.get("/api/v1/events", url.Values{"tenant_id": {tenantID}})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "", "Event trigger name")
	cmd.Flags().StringVar(&nextAgent, "next-agent", "", "Intent to dispatch when the event fires")
	cmd.Flags().StringArrayVarP(&paramPairs, "param", "p", nil, "Event parameter as key=value (repeatable)")
	return cmd
}

func newAutopilotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Autopilot controls",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one autopilot cycle for the tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(); err != nil {
				return err
			}
			data, err := newClient().post("/api/v1/autopilot/run", map[string]any{
				"tenant_id": tenantID,
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	})

	return cmd
}

func newLogsCommand() *cobra.Command {
	var level, source, limit string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent server logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if tenantID != "" {
				params.Set("tenant_id", tenantID)
			}
			if level != "" {
				params.Set("level", level)
			}
			if source != "" {
				params.Set("source", source)
			}
			if limit != "" {
				params.Set("limit", limit)
			}
			data, err := newClient().get("/api/v1/logs", params)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Filter by level")
	cmd.Flags().StringVar(&source, "source", "", "Filter by source")
	cmd.Flags().StringVar(&limit, "limit", "", "Maximum entries")
	return cmd
}

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Obtain a bearer token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().post("/api/v1/auth/login", map[string]any{
				"username": args[0],
				"password": args[1],
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}
