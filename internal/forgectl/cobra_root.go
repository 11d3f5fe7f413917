package forgectl

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"forged/pkg/types"
)

// Config carries persistent flag values into the command actions.
type Config struct {
	BaseURL string
}

// BuildRootCmd constructs the forgectl command tree.
func BuildRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "forgectl",
		Short:         "Operator CLI for the forged admission controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.BaseURL, "addr", cfg.BaseURL, "Base URL of the forged API (defaults FORGED_URL or http://127.0.0.1:8080)")

	client := func() *Client { return NewClient(cfg.BaseURL) }

	skuCmd := &cobra.Command{Use: "sku", Short: "Show the active hardware profile", RunE: func(cmd *cobra.Command, args []string) error {
		p, err := client().SKU()
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	}}

	targetsCmd := &cobra.Command{Use: "targets", Short: "Show the active profile's SLO targets", RunE: func(cmd *cobra.Command, args []string) error {
		t, err := client().Targets()
		if err != nil {
			return err
		}
		return printJSON(cmd, t)
	}}

	statusCmd := &cobra.Command{Use: "status", Short: "Show budget, queue, and session totals", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := client().Status()
		if err != nil {
			return err
		}
		return printJSON(cmd, st)
	}}

	sessionsCmd := &cobra.Command{Use: "sessions", Short: "List known sessions", RunE: func(cmd *cobra.Command, args []string) error {
		ss, err := client().Sessions()
		if err != nil {
			return err
		}
		return printJSON(cmd, ss)
	}}

	var tokens, priority int
	var dtype string
	submitCmd := &cobra.Command{Use: "submit", Short: "Submit a session request", Example: "  forgectl submit --tokens 4096 --priority 10", RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client().Submit(types.SessionRequest{ContextTokens: tokens, Priority: priority, KVCacheDtype: dtype})
		if err != nil {
			return err
		}
		if res.Queued {
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s position=%d\n", res.SessionID, res.Position)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admitted %s\n", res.SessionID)
		return nil
	}}
	submitCmd.Flags().IntVar(&tokens, "tokens", 2048, "Requested context length in tokens")
	submitCmd.Flags().IntVar(&priority, "priority", 0, "Scheduling priority")
	submitCmd.Flags().StringVar(&dtype, "dtype", "", "KV-cache dtype override (fp32|fp16|fp8)")

	cancelCmd := &cobra.Command{Use: "cancel <session-id>", Short: "Cancel a queued or running session", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return client().Cancel(args[0])
	}}

	completeCmd := &cobra.Command{Use: "complete <session-id>", Short: "Signal engine completion for a session", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return client().Complete(args[0])
	}}

	root.AddCommand(skuCmd, targetsCmd, statusCmd, sessionsCmd, submitCmd, cancelCmd, completeCmd)
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Main runs the CLI and returns a process exit code.
func Main(args []string) int {
	cfg := &Config{BaseURL: "http://127.0.0.1:8080"}
	if v := os.Getenv("FORGED_URL"); v != "" {
		cfg.BaseURL = v
	}
	root := BuildRootCmd(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
