// Command taskweave is the operator CLI for a running taskweaved daemon.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskweave/taskweave/internal/version"
)

var (
	daemonAddr string
	authToken  string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskweave",
		Short:         "Control a running taskweaved scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&daemonAddr, "addr", envOr("TASKWEAVE_ADDR", "http://localhost:8090"), "daemon base URL")
	root.PersistentFlags().StringVar(&authToken, "token", os.Getenv("BEARER_TOKEN"), "bearer token for the control API")

	root.AddCommand(newStatusCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newHealthCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the scheduler's last run and statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCall(cmd.OutOrStdout(), http.MethodGet, "/api/v1/scheduler/status")
		},
	}
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Trigger an immediate scheduling cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCall(cmd.OutOrStdout(), http.MethodPost, "/api/v1/scheduler/run")
		},
	}
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the scheduler is operational",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCall(cmd.OutOrStdout(), http.MethodGet, "/api/v1/scheduler/health")
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskweave %s (%s)\n", version.Version, version.Commit)
		},
	}
}

// printCall performs one control API request and pretty-prints the JSON
// response.
func printCall(out io.Writer, method, path string) error {
	client := &http.Client{Timeout: 60 * time.Second}
	req, err := http.NewRequest(method, daemonAddr+path, nil)
	if err != nil {
		return err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty json.RawMessage = body
	var buf map[string]any
	if json.Unmarshal(body, &buf) == nil {
		if b, err := json.MarshalIndent(buf, "", "  "); err == nil {
			pretty = b
		}
	}
	fmt.Fprintln(out, string(pretty))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
