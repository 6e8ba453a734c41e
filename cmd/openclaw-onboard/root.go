package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Hazard-House/openclaw/internal/config"
	"github.com/Hazard-House/openclaw/internal/onboard"
	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/Hazard-House/openclaw/pkg/server"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rpcError is a failed RPC response surfaced as a command error.
type rpcError struct {
	Code    models.ErrorCode
	Message string
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type cli struct {
	verbose bool
	entity  string
	svc     *onboard.Service
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "openclaw-onboard",
		Short: "Create agents from recipes and connect them to external apps",
		Long: `openclaw-onboard provisions OpenClaw agents from persona recipes and
manages their connections to OAuth-protected apps through the broker.

State is read from OPENCLAW_STATE_DIR (default ~/.openclaw). The broker key
comes from plugins.entries.composio.config.apiKey or COMPOSIO_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			c.svc, _ = server.NewService(config.Load())
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&c.entity, "entity", "", "Broker entity to act for")

	root.AddCommand(
		c.recipesCmd(),
		c.simpleCmd(),
		c.connectCmd(),
		c.statusCmd(),
		c.listCmd(),
		c.disconnectCmd(),
		c.executeCmd(),
		c.agentsCmd(),
	)
	return root
}

// call runs one RPC method in-process and returns its payload.
func (c *cli) call(ctx context.Context, method string, params any) (any, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	resp := c.svc.Handle(ctx, &models.RPCRequest{
		ID:     uuid.NewString(),
		Method: method,
		Params: raw,
	})
	if !resp.OK {
		return nil, &rpcError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Payload, nil
}

// callAndPrint runs a method and writes its payload as indented JSON.
func (c *cli) callAndPrint(cmd *cobra.Command, method string, params any) error {
	payload, err := c.call(cmd.Context(), method, params)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), payload)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── Commands ─────────────────────────────────────────────────

func (c *cli) recipesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "List the available persona recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := c.call(cmd.Context(), onboard.MethodRecipes, struct{}{})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), payload)
			}
			res := payload.(*onboard.RecipesResult)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tDESCRIPTION")
			for _, r := range res.Recipes {
				fmt.Fprintf(tw, "%s\t%s %s\t%s\n", r.ID, r.Emoji, r.Label, r.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func (c *cli) simpleCmd() *cobra.Command {
	var p onboard.SimpleParams
	cmd := &cobra.Command{
		Use:   "simple",
		Short: "Create an agent from a recipe",
		Example: `  openclaw-onboard simple --user Ada --bot Helper --recipe daily-assistant
  openclaw-onboard simple --user Ada --bot Mailer --recipe inbox-triage --entity ada`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.EntityID = c.entity
			return c.callAndPrint(cmd, onboard.MethodSimple, p)
		},
	}
	cmd.Flags().StringVar(&p.UserName, "user", "", "Your name, written to USER.md")
	cmd.Flags().StringVar(&p.BotName, "bot", "", "The agent's display name")
	cmd.Flags().StringVar(&p.RecipeID, "recipe", "", "Recipe id (see 'recipes')")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("bot")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func (c *cli) connectCmd() *cobra.Command {
	var redirect string
	cmd := &cobra.Command{
		Use:   "connect APP [APP...]",
		Short: "Start connecting one or more apps",
		Long: `Start a broker connection for each app. Open the printed redirect URL
to finish authorization, then check progress with 'status'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return c.callAndPrint(cmd, onboard.MethodAuthInitiate, onboard.AuthInitiateParams{
					AppName:     args[0],
					EntityID:    c.entity,
					RedirectURI: redirect,
				})
			}
			return c.callAndPrint(cmd, onboard.MethodConnectMultiple, onboard.ConnectMultipleParams{
				EntityID:    c.entity,
				AppNames:    args,
				RedirectURI: redirect,
			})
		},
	}
	cmd.Flags().StringVar(&redirect, "redirect", "", "Where the broker sends the browser after authorization")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status CONNECTED_ACCOUNT_ID",
		Short: "Show the broker's current status for a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.callAndPrint(cmd, onboard.MethodAuthStatus, onboard.AuthStatusParams{ConnectedAccountID: args[0]})
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the entity's connected accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.callAndPrint(cmd, onboard.MethodConnectionsList, onboard.ListParams{EntityID: c.entity})
		},
	}
}

func (c *cli) disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect CONNECTED_ACCOUNT_ID",
		Short: "Delete a connected account at the broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.callAndPrint(cmd, onboard.MethodDisconnect, onboard.DisconnectParams{ConnectedAccountID: args[0]})
		},
	}
}

func (c *cli) executeCmd() *cobra.Command {
	var (
		rawParams string
		account   string
	)
	cmd := &cobra.Command{
		Use:     "execute ACTION",
		Short:   "Run a broker action",
		Example: `  openclaw-onboard execute GMAIL_FETCH_EMAILS --params '{"max_results":5}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]any
			if strings.TrimSpace(rawParams) != "" {
				if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
					return fmt.Errorf("--params must be a JSON object: %w", err)
				}
			}
			return c.callAndPrint(cmd, onboard.MethodExecute, onboard.ExecuteParams{
				EntityID:           c.entity,
				ActionName:         args[0],
				Params:             params,
				ConnectedAccountID: account,
			})
		},
	}
	cmd.Flags().StringVar(&rawParams, "params", "", "Action input as a JSON object")
	cmd.Flags().StringVar(&account, "account", "", "Connected account to run the action with")
	return cmd
}

func (c *cli) agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List registered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.callAndPrint(cmd, onboard.MethodAgentsList, struct{}{})
		},
	}
}
