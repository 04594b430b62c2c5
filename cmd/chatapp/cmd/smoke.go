package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nfrund/chatapp/internal/config"
	"github.com/spf13/cobra"
)

var (
	smokeBase     string
	smokeInsecure bool
)

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Check a deployed environment without signing in",
	Long: `Load the front page and the runtime config of a deployed environment and
check that the message API rejects anonymous calls with 401.

A JSON report is printed. The exit code is 1 when the API does not answer 401
and 2 when the environment cannot be reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := runSmoke(cmd.Context(), smokeClient(smokeInsecure), smokeBase)
		if err != nil {
			return &exitError{code: 2, err: fmt.Errorf("smoke test failed: %w", err)}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !report.OK {
			return &exitError{code: 1, err: fmt.Errorf("anonymous API call answered %d, want 401", report.Steps[len(report.Steps)-1].Status)}
		}
		return nil
	},
}

func init() {
	smokeCmd.Flags().StringVar(&smokeBase, "base", "https://ingress.local", "Base URL of the environment")
	smokeCmd.Flags().BoolVar(&smokeInsecure, "insecure", false, "Skip TLS certificate verification")
	rootCmd.AddCommand(smokeCmd)
}

type smokeStep struct {
	Step           string `json:"step"`
	Status         int    `json:"status"`
	ContainsAppDiv *bool  `json:"containsAppDiv,omitempty"`
	HasIssuer      *bool  `json:"hasIssuer,omitempty"`
}

type smokeReport struct {
	OK    bool        `json:"ok"`
	Steps []smokeStep `json:"steps"`
}

// smokeClient does not follow redirects, so a login redirect shows up as-is.
func smokeClient(insecure bool) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // self-signed ingress certificates
	}
	return &http.Client{
		Transport: tr,
		Timeout:   15 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func runSmoke(ctx context.Context, hc *http.Client, base string) (*smokeReport, error) {
	base = strings.TrimRight(base, "/")
	report := &smokeReport{}

	status, body, err := smokeGet(ctx, hc, base+"/")
	if err != nil {
		return nil, err
	}
	hasApp := strings.Contains(body, `<div id="app"></div>`)
	report.Steps = append(report.Steps, smokeStep{Step: "GET /", Status: status, ContainsAppDiv: &hasApp})

	status, body, err = smokeGet(ctx, hc, base+"/config.js")
	if err != nil {
		return nil, err
	}
	hasIssuer := strings.Contains(body, config.KeyIssuerURL)
	report.Steps = append(report.Steps, smokeStep{Step: "GET /config.js", Status: status, HasIssuer: &hasIssuer})

	status, _, err = smokeGet(ctx, hc, base+"/api/messages")
	if err != nil {
		return nil, err
	}
	report.Steps = append(report.Steps, smokeStep{Step: "GET /api/messages (unauth)", Status: status})

	report.OK = status == http.StatusUnauthorized
	return report, nil
}

func smokeGet(ctx context.Context, hc *http.Client, target string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read %s: %w", target, err)
	}
	return resp.StatusCode, string(body), nil
}
