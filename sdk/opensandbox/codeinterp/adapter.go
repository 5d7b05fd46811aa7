// Package codeinterp is a thin adapter over a sandbox's execd
// code-interpreter endpoints (spec.md §4.J).
package codeinterp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/sdk/opensandbox"
	"github.com/alibaba/OpenSandbox/sdk/opensandbox/command"
)

// Adapter runs code in a sandbox's interpreter contexts, constructed
// eagerly like the other execd-facing adapters (spec.md §9). client
// bounds ordinary context/interrupt calls; streamingClient backs Run's
// SSE response, which must not be cut off by RequestTimeout (spec.md
// §4.H).
type Adapter struct {
	cfg             *opensandbox.ConnectionConfig
	endpoint        string
	client          *http.Client
	streamingClient *http.Client
}

func NewAdapter(cfg *opensandbox.ConnectionConfig, endpoint string) *Adapter {
	return &Adapter{cfg: cfg, endpoint: endpoint, client: cfg.HTTPClient(), streamingClient: cfg.StreamingHTTPClient()}
}

type createContextRequest struct {
	Language string `json:"language"`
}

// CreateContext opens a new interpreter session for the given language.
func (a *Adapter) CreateContext(language string) (*opensandbox.CodeContext, error) {
	var ctx opensandbox.CodeContext
	if err := a.postJSON("/v1/code-context", createContextRequest{Language: language}, &ctx); err != nil {
		return nil, err
	}
	return &ctx, nil
}

type runCodeRequest struct {
	Code    string `json:"code"`
	Context string `json:"context"`
}

// Run executes code within an existing interpreter context and returns
// the assembled Execution by reusing the command package's SSE
// consumer, since code-run responses share the same frame protocol as
// shell commands.
func (a *Adapter) Run(code, contextID string) (*opensandbox.Execution, error) {
	body, err := json.Marshal(runCodeRequest{Code: code, Context: contextID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal code-run request: %w", err)
	}

	url := fmt.Sprintf("%s://%s/v1/code-run", a.cfg.Protocol(), a.endpoint)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build code-run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.streamingClient.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.SandboxAPIException, "code-run request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(apierr.SandboxAPIException, fmt.Sprintf("execd returned status %d for code-run", resp.StatusCode))
	}

	execution, err := command.ConsumeSSE(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.SandboxAPIException, "code-run stream failed", err)
	}
	return execution, nil
}

// Interrupt cancels a running execution; execd replies 204 on success.
func (a *Adapter) Interrupt(executionID string) error {
	url := fmt.Sprintf("%s://%s/v1/code-interrupt/%s", a.cfg.Protocol(), a.endpoint, executionID)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build interrupt request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.SandboxAPIException, "interrupt request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return apierr.New(apierr.SandboxAPIException, fmt.Sprintf("execd returned status %d for interrupt", resp.StatusCode))
	}
	return nil
}

func (a *Adapter) postJSON(path string, reqBody, respBody any) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s://%s%s", a.cfg.Protocol(), a.endpoint, path)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return apierr.Wrap(apierr.SandboxAPIException, "execd request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apierr.New(apierr.SandboxAPIException, fmt.Sprintf("execd returned status %d", resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}
