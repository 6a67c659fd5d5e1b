package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

var (
	apiBase string
	apiKey  string
	apiWait time.Duration
)

// triggerCmd asks a running refreshd to run a pass instead of running one
// in this process, so the daemon's serialization applies.
var triggerCmd = &cobra.Command{
	Use:         "trigger",
	Short:       "Ask a running refreshd to run a pass now",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationRemote: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if apiKey == "" {
			apiKey = firstKey(os.Getenv("API_ADMIN_KEYS"))
		}
		out, err := triggerRemote(&http.Client{Timeout: apiWait}, apiBase, apiKey)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	def := os.Getenv("API_BASE")
	if def == "" {
		def = "http://localhost:8080"
	}
	triggerCmd.Flags().StringVar(&apiBase, "api", def, "refreshd base URL")
	triggerCmd.Flags().StringVar(&apiKey, "key", "", "admin API key (default: first of API_ADMIN_KEYS)")
	triggerCmd.Flags().DurationVar(&apiWait, "wait", 10*time.Minute, "how long to wait for the pass to finish")
}

func triggerRemote(client *http.Client, base, key string) (domain.RunOutcome, error) {
	var out domain.RunOutcome
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(base, "/")+"/api/runs", nil)
	if err != nil {
		return out, err
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := client.Do(req)
	if err != nil {
		return out, fmt.Errorf("contacting refreshd: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return out, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.Unmarshal(body, &out); err != nil {
			return out, fmt.Errorf("decode run: %w", err)
		}
		return out, nil
	case http.StatusBadGateway:
		var failed struct {
			Run   domain.RunOutcome `json:"run"`
			Error string            `json:"error"`
		}
		if err := json.Unmarshal(body, &failed); err != nil {
			return out, fmt.Errorf("refreshd returned %s", resp.Status)
		}
		return failed.Run, fmt.Errorf("run %s: %s", failed.Run.RunID, failed.Error)
	default:
		return out, fmt.Errorf("refreshd returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
}

func firstKey(list string) string {
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			return k
		}
	}
	return ""
}
