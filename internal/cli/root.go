// Package cli реализует vsctl, утилиту оператора для HTTP API визуального поиска.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// options общие флаги всех команд.
type options struct {
	server  string
	timeout time.Duration
	json    bool

	// home каталог с .vsctl.yaml; подменяется в тестах
	home   string
	client *Client
}

// NewRootCmd собирает дерево команд vsctl.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "vsctl",
		Short: "Operator CLI for the visual bouquet search service",
		Long: `vsctl talks to the visual search HTTP API.

The server address comes from --server, then VSCTL_SERVER, then the
"server" key of ~/.vsctl.yaml.

Examples:
  vsctl stats
  vsctl search bouquet.jpg --top-k 5
  vsctl batch-index --all --limit 100`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.home == "" {
				opts.home, _ = os.UserHomeDir()
			}

			server, err := resolveServer(opts.server, opts.home)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			opts.client = NewClient(server, &http.Client{Timeout: opts.timeout})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", "", "service URL (default from VSCTL_SERVER or ~/.vsctl.yaml)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON responses")

	root.AddCommand(
		newStatsCmd(opts),
		newSearchCmd(opts),
		newIndexCmd(opts),
		newBatchIndexCmd(opts),
		newDeleteCmd(opts),
		newReconcileCmd(opts),
	)

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// printJSON печатает ответ как есть, для скриптов.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
