package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// newGrammarCmd is the CLI face of the grammar add/delete/activate
// operations spec.md's Non-goals carve out as the one permitted run-time
// model mutation: a thin HTTP client against the control surface
// internal/server exposes (GET/POST /grammars, POST /grammars/apply),
// the same staged-then-applied flow module.c's line commands drive.
func newGrammarCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:   "grammar",
		Short: "List or stage changes to the running server's grammars",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.ListenAddr
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&addr, "addr", "", "HTTP control address (defaults to server.listen_addr)")

	root.AddCommand(newGrammarListCmd(&addr))
	root.AddCommand(newGrammarActionCmd(&addr, "activate"))
	root.AddCommand(newGrammarActionCmd(&addr, "deactivate"))
	root.AddCommand(newGrammarActionCmd(&addr, "delete"))
	root.AddCommand(newGrammarApplyCmd(&addr))

	return root
}

func newGrammarListCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every grammar known to the running server",
		RunE: func(_ *cobra.Command, _ []string) error {
			resp, err := http.Get(fmt.Sprintf("http://%s/grammars", *addr)) //nolint:noctx
			if err != nil {
				return fmt.Errorf("grammar list: %w", err)
			}
			defer resp.Body.Close()

			return copyPrettyJSON(resp.Body, os.Stdout)
		},
	}
}

func newGrammarActionCmd(addr *string, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: fmt.Sprintf("Stage a %s hook on one grammar", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var id int
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("grammar id must be an integer: %w", err)
			}

			body, _ := json.Marshal(map[string]any{"id": id, "action": action})
			resp, err := http.Post(fmt.Sprintf("http://%s/grammars", *addr), "application/json", bytes.NewReader(body)) //nolint:noctx
			if err != nil {
				return fmt.Errorf("grammar %s: %w", action, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("grammar %s: server returned %s", action, resp.Status)
			}

			_, err = fmt.Fprintf(os.Stdout, "grammar %d: %s staged\n", id, action)
			return err
		},
	}
}

func newGrammarApplyCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Fold every staged grammar hook into the running global grammar",
		RunE: func(_ *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Post(fmt.Sprintf("http://%s/grammars/apply", *addr), "application/json", nil)
			if err != nil {
				return fmt.Errorf("grammar apply: %w", err)
			}
			defer resp.Body.Close()

			return copyPrettyJSON(resp.Body, os.Stdout)
		},
	}
}

func copyPrettyJSON(r io.Reader, w io.Writer) error {
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
