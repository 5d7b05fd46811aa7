// Package filesystem is a thin adapter over a sandbox's execd
// filesystem endpoints (SPEC_FULL.md supplemented feature: filesystem
// access was present in the original implementation's execd API surface
// but dropped from the distilled spec; this restores a minimal client).
package filesystem

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/sdk/opensandbox"
)

// Adapter uploads/downloads/lists files under a sandbox's /files/*
// execd routes.
type Adapter struct {
	cfg      *opensandbox.ConnectionConfig
	endpoint string
	client   *http.Client
}

func NewAdapter(cfg *opensandbox.ConnectionConfig, endpoint string) *Adapter {
	return &Adapter{cfg: cfg, endpoint: endpoint, client: cfg.HTTPClient()}
}

// Upload streams content to path inside the sandbox.
func (a *Adapter) Upload(path string, content io.Reader) error {
	req, err := http.NewRequest(http.MethodPut, a.url(path), content)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	return a.doNoBody(req)
}

// Download fetches the content at path inside the sandbox.
func (a *Adapter) Download(path string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, a.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.SandboxAPIException, "download request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apierr.New(apierr.SandboxAPIException, fmt.Sprintf("execd returned status %d for download", resp.StatusCode))
	}
	return resp.Body, nil
}

// List returns the directory entry names under path.
func (a *Adapter) List(path string) ([]string, error) {
	req, err := http.NewRequest(http.MethodGet, a.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.SandboxAPIException, "list request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(apierr.SandboxAPIException, fmt.Sprintf("execd returned status %d for list", resp.StatusCode))
	}

	var entries []string
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode directory listing: %w", err)
	}
	return entries, nil
}

func (a *Adapter) url(path string) string {
	return fmt.Sprintf("%s://%s/files%s", a.cfg.Protocol(), a.endpoint, path)
}

func (a *Adapter) doNoBody(req *http.Request) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.SandboxAPIException, "filesystem request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return apierr.New(apierr.SandboxAPIException, fmt.Sprintf("execd returned status %d", resp.StatusCode))
	}
	return nil
}
