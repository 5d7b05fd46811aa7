package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/sdk/opensandbox"
)

// CommandsAdapter runs shell commands against a single sandbox's execd
// agent over SSE. It is constructed eagerly, owning a long-lived
// *http.Client per spec.md §9's eager-adapter-construction guidance
// (grounded on
// original_source/.../test_adapters_eager_init.py's
// test_sandbox_service_adapter_eager_init pattern, generalized to every
// execd-facing adapter).
type CommandsAdapter struct {
	cfg      *opensandbox.ConnectionConfig
	endpoint string
	client   *http.Client
}

// NewCommandsAdapter builds an adapter bound to the sandbox reachable at
// endpoint (host:port of the execd agent).
func NewCommandsAdapter(cfg *opensandbox.ConnectionConfig, endpoint string) *CommandsAdapter {
	return &CommandsAdapter{cfg: cfg, endpoint: endpoint, client: cfg.StreamingHTTPClient()}
}

type runRequest struct {
	Command string `json:"command"`
}

// Run executes command in the bound sandbox and returns the assembled
// Execution. A blank command fails locally before any network call
// (spec.md §4.H).
func (a *CommandsAdapter) Run(command string) (*opensandbox.Execution, error) {
	if strings.TrimSpace(command) == "" {
		return nil, apierr.New(apierr.InvalidArgument, "command must not be blank")
	}

	body, err := json.Marshal(runRequest{Command: command})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command request: %w", err)
	}

	url := fmt.Sprintf("%s://%s/command", a.cfg.Protocol(), a.endpoint)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.SandboxAPIException, "command request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, apierr.New(apierr.SandboxAPIException, fmt.Sprintf("execd returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	execution, err := ConsumeSSE(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.SandboxAPIException, "command stream failed", err)
	}
	return execution, nil
}
