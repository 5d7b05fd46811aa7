// Package sandboxes is the SDK's control-plane-facing lifecycle client,
// constructed eagerly alongside the other adapters (spec.md §9, grounded
// on original_source's test_adapters_eager_init.py
// test_sandbox_service_adapter_eager_init) rather than lazily on first
// call. It speaks the same wire DTOs the server's internal/httpapi
// package renders.
package sandboxes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/sdk/opensandbox"
)

const apiKeyHeader = "OPEN-SANDBOX-API-KEY"

// Image names the container image a sandbox runs.
type Image struct {
	URI     string `json:"uri"`
	AuthRef string `json:"authRef,omitempty"`
}

// NetworkRule is one ordered entry of a NetworkPolicy's egress list.
type NetworkRule struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

// NetworkPolicy is a sandbox's egress policy.
type NetworkPolicy struct {
	DefaultAction string        `json:"defaultAction"`
	Egress        []NetworkRule `json:"egress,omitempty"`
}

// Status is a sandbox's derived lifecycle state.
type Status struct {
	State            string    `json:"state"`
	Reason           string    `json:"reason,omitempty"`
	Message          string    `json:"message,omitempty"`
	LastTransitionAt time.Time `json:"lastTransitionAt,omitempty"`
}

// Sandbox is the control plane's wire representation of a sandbox.
type Sandbox struct {
	ID             string            `json:"id"`
	Image          Image             `json:"image"`
	Entrypoint     []string          `json:"entrypoint"`
	Env            map[string]string `json:"env,omitempty"`
	ResourceLimits map[string]string `json:"resourceLimits,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	NetworkPolicy  *NetworkPolicy    `json:"networkPolicy,omitempty"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	CreatedAt      time.Time         `json:"createdAt"`
	Status         Status            `json:"status"`
	Bindings       map[string]string `json:"bindings"`
}

// CreateInput bundles the arguments to Create.
type CreateInput struct {
	Image          Image
	Entrypoint     []string
	Env            map[string]string
	ResourceLimits map[string]string
	Metadata       map[string]string
	NetworkPolicy  *NetworkPolicy
	ExpiresAt      time.Time
}

// Adapter is the SDK's client for the control plane's /sandboxes API.
type Adapter struct {
	cfg    *opensandbox.ConnectionConfig
	client *http.Client
}

// NewAdapter builds an Adapter eagerly; it performs no network calls
// until a method is invoked.
func NewAdapter(cfg *opensandbox.ConnectionConfig) *Adapter {
	return &Adapter{cfg: cfg, client: cfg.HTTPClient()}
}

type createRequest struct {
	Image          Image             `json:"image"`
	Entrypoint     []string          `json:"entrypoint"`
	Env            map[string]string `json:"env,omitempty"`
	ResourceLimits map[string]string `json:"resourceLimits,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	NetworkPolicy  *NetworkPolicy    `json:"networkPolicy,omitempty"`
	ExpiresAt      time.Time         `json:"expiresAt"`
}

// Create provisions a new sandbox.
func (a *Adapter) Create(in CreateInput) (*Sandbox, error) {
	var sbx Sandbox
	req := createRequest{
		Image:          in.Image,
		Entrypoint:     in.Entrypoint,
		Env:            in.Env,
		ResourceLimits: in.ResourceLimits,
		Metadata:       in.Metadata,
		NetworkPolicy:  in.NetworkPolicy,
		ExpiresAt:      in.ExpiresAt,
	}
	if err := a.do(http.MethodPost, "/sandboxes", req, &sbx, http.StatusCreated); err != nil {
		return nil, err
	}
	return &sbx, nil
}

// listResponse is the wire envelope for List.
type listResponse struct {
	Sandboxes     []Sandbox `json:"sandboxes"`
	NextPageToken string    `json:"nextPageToken"`
}

// List returns sandboxes matching labelFilter, paginated by pageToken.
func (a *Adapter) List(labelFilter map[string]string, pageToken string) ([]Sandbox, string, error) {
	query := url.Values{}
	for k, v := range labelFilter {
		query.Set(k, v)
	}
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	var resp listResponse
	path := "/sandboxes"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	if err := a.do(http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return nil, "", err
	}
	return resp.Sandboxes, resp.NextPageToken, nil
}

// Get fetches a single sandbox by ID.
func (a *Adapter) Get(id string) (*Sandbox, error) {
	var sbx Sandbox
	if err := a.do(http.MethodGet, "/sandboxes/"+url.PathEscape(id), nil, &sbx, http.StatusOK); err != nil {
		return nil, err
	}
	return &sbx, nil
}

// Delete removes a sandbox; it is idempotent.
func (a *Adapter) Delete(id string) error {
	return a.do(http.MethodDelete, "/sandboxes/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

// Pause suspends a sandbox, if the configured provider supports it.
func (a *Adapter) Pause(id string) error {
	return a.do(http.MethodPost, "/sandboxes/"+url.PathEscape(id)+":pause", nil, nil, http.StatusNoContent)
}

// Resume resumes a paused sandbox.
func (a *Adapter) Resume(id string) error {
	return a.do(http.MethodPost, "/sandboxes/"+url.PathEscape(id)+":resume", nil, nil, http.StatusNoContent)
}

type renewExpirationRequest struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

type renewExpirationResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// RenewExpiration pushes out a sandbox's expiration timestamp.
func (a *Adapter) RenewExpiration(id string, expiresAt time.Time) (time.Time, error) {
	var resp renewExpirationResponse
	req := renewExpirationRequest{ExpiresAt: expiresAt}
	path := "/sandboxes/" + url.PathEscape(id) + ":renewExpiration"
	if err := a.do(http.MethodPost, path, req, &resp, http.StatusOK); err != nil {
		return time.Time{}, err
	}
	return resp.ExpiresAt, nil
}

type endpointResponse struct {
	Endpoint string `json:"endpoint"`
}

// GetEndpoint resolves the reachable address for a sandbox's exposed port.
func (a *Adapter) GetEndpoint(id string, port int, resolveInternal bool) (string, error) {
	query := url.Values{}
	query.Set("port", strconv.Itoa(port))
	if resolveInternal {
		query.Set("resolveInternal", "true")
	}
	path := "/sandboxes/" + url.PathEscape(id) + "/endpoint?" + query.Encode()

	var resp endpointResponse
	if err := a.do(http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return "", err
	}
	return resp.Endpoint, nil
}

func (a *Adapter) do(method, path string, reqBody, respBody any, wantStatus int) error {
	var body bytes.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = *bytes.NewReader(data)
	}

	httpReq, err := http.NewRequest(method, a.cfg.BaseURL()+path, &body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if key := a.cfg.APIKey(); key != "" {
		httpReq.Header.Set(apiKeyHeader, key)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return apierr.Wrap(apierr.SandboxAPIException, "control plane request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeErrorEnvelope(resp)
	}
	if respBody == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeErrorEnvelope(resp *http.Response) error {
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Code == "" {
		return apierr.New(apierr.SandboxAPIException, fmt.Sprintf("control plane returned status %d", resp.StatusCode))
	}
	return apierr.New(apierr.Code(env.Code), env.Message)
}
