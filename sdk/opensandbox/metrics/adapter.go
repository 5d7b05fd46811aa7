// Package metrics is a thin adapter exposing a sandbox's resource usage
// snapshot (SPEC_FULL.md supplemented feature, grounded on the
// original implementation's execd metrics surface).
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/sdk/opensandbox"
)

// Snapshot is a point-in-time resource usage reading for a sandbox.
type Snapshot struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryBytes   int64   `json:"memoryBytes"`
	MemoryLimit   int64   `json:"memoryLimitBytes"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Adapter fetches metrics from a sandbox's execd agent.
type Adapter struct {
	cfg      *opensandbox.ConnectionConfig
	endpoint string
	client   *http.Client
}

func NewAdapter(cfg *opensandbox.ConnectionConfig, endpoint string) *Adapter {
	return &Adapter{cfg: cfg, endpoint: endpoint, client: cfg.HTTPClient()}
}

// Get fetches the current resource usage snapshot.
func (a *Adapter) Get() (*Snapshot, error) {
	url := fmt.Sprintf("%s://%s/v1/metrics", a.cfg.Protocol(), a.endpoint)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metrics request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.SandboxAPIException, "metrics request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(apierr.SandboxAPIException, fmt.Sprintf("execd returned status %d for metrics", resp.StatusCode))
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode metrics snapshot: %w", err)
	}
	return &snapshot, nil
}
