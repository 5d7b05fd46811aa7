package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/internal/provider"
	"github.com/alibaba/OpenSandbox/internal/sandbox"
)

// Handlers wires the sandbox Service to gorilla/mux handler functions.
type Handlers struct {
	Service *sandbox.Service
}

func NewHandlers(svc *sandbox.Service) *Handlers {
	return &Handlers{Service: svc}
}

type imageDTO struct {
	URI     string `json:"uri"`
	AuthRef string `json:"authRef,omitempty"`
}

type networkRuleDTO struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

type networkPolicyDTO struct {
	DefaultAction string           `json:"defaultAction"`
	Egress        []networkRuleDTO `json:"egress,omitempty"`
}

type statusDTO struct {
	State            string    `json:"state"`
	Reason           string    `json:"reason,omitempty"`
	Message          string    `json:"message,omitempty"`
	LastTransitionAt time.Time `json:"lastTransitionAt,omitempty"`
}

type sandboxDTO struct {
	ID             string            `json:"id"`
	Image          imageDTO          `json:"image"`
	Entrypoint     []string          `json:"entrypoint"`
	Env            map[string]string `json:"env,omitempty"`
	ResourceLimits map[string]string `json:"resourceLimits,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	NetworkPolicy  *networkPolicyDTO `json:"networkPolicy,omitempty"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	CreatedAt      time.Time         `json:"createdAt"`
	Status         statusDTO         `json:"status"`
	Bindings       map[string]string `json:"bindings"`
}

func toSandboxDTO(s sandbox.Sandbox) sandboxDTO {
	var policy *networkPolicyDTO
	if s.NetworkPolicy != nil {
		rules := make([]networkRuleDTO, 0, len(s.NetworkPolicy.Egress))
		for _, r := range s.NetworkPolicy.Egress {
			rules = append(rules, networkRuleDTO{Action: r.Action, Target: r.Target})
		}
		policy = &networkPolicyDTO{DefaultAction: s.NetworkPolicy.DefaultAction, Egress: rules}
	}

	bindings := make(map[string]string, len(s.Bindings))
	for port, endpoint := range s.Bindings {
		bindings[strconv.Itoa(port)] = endpoint
	}

	return sandboxDTO{
		ID:             s.ID,
		Image:          imageDTO{URI: s.Image.URI, AuthRef: s.Image.AuthRef},
		Entrypoint:     s.Entrypoint,
		Env:            s.Env,
		ResourceLimits: s.ResourceLimits,
		Metadata:       s.Metadata,
		NetworkPolicy:  policy,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
		Status: statusDTO{
			State:            string(s.Status.State),
			Reason:           s.Status.Reason,
			Message:          s.Status.Message,
			LastTransitionAt: s.Status.LastTransitionAt,
		},
		Bindings: bindings,
	}
}

type createSandboxRequest struct {
	Image          imageDTO          `json:"image"`
	Entrypoint     []string          `json:"entrypoint"`
	Env            map[string]string `json:"env,omitempty"`
	ResourceLimits map[string]string `json:"resourceLimits,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	NetworkPolicy  *networkPolicyDTO `json:"networkPolicy,omitempty"`
	ExpiresAt      time.Time         `json:"expiresAt"`
}

func (h *Handlers) CreateSandbox(w http.ResponseWriter, r *http.Request) {
	var req createSandboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.InvalidArgument, "malformed request body"))
		return
	}

	var policy *provider.NetworkPolicy
	if req.NetworkPolicy != nil {
		rules := make([]provider.NetworkRule, 0, len(req.NetworkPolicy.Egress))
		for _, rule := range req.NetworkPolicy.Egress {
			rules = append(rules, provider.NetworkRule{Action: rule.Action, Target: rule.Target})
		}
		policy = &provider.NetworkPolicy{DefaultAction: req.NetworkPolicy.DefaultAction, Egress: rules}
	}

	sbx, err := h.Service.Create(r.Context(), sandbox.CreateInput{
		Image:          provider.ImageSpec{URI: req.Image.URI, AuthRef: req.Image.AuthRef},
		Entrypoint:     req.Entrypoint,
		Env:            req.Env,
		ResourceLimits: req.ResourceLimits,
		Metadata:       req.Metadata,
		NetworkPolicy:  policy,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSandboxDTO(sbx))
}

func (h *Handlers) ListSandboxes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	labelFilter := map[string]string{}
	for key, values := range query {
		if len(values) == 0 || key == "pageToken" {
			continue
		}
		labelFilter[key] = values[0]
	}
	delete(labelFilter, "pageToken")

	sandboxes, nextToken, err := h.Service.List(r.Context(), labelFilter, query.Get("pageToken"))
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]sandboxDTO, 0, len(sandboxes))
	for _, s := range sandboxes {
		dtos = append(dtos, toSandboxDTO(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sandboxes": dtos, "nextPageToken": nextToken})
}

func (h *Handlers) GetSandbox(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sbx, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSandboxDTO(sbx))
}

func (h *Handlers) DeleteSandbox(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) PauseSandbox(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Service.Pause(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ResumeSandbox(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Service.Resume(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renewExpirationRequest struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handlers) RenewExpiration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req renewExpirationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.InvalidArgument, "malformed request body"))
		return
	}

	expiresAt, err := h.Service.RenewExpiration(r.Context(), id, req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expiresAt": expiresAt})
}

func (h *Handlers) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	portStr := r.URL.Query().Get("port")
	port, convErr := strconv.Atoi(portStr)
	if convErr != nil {
		writeError(w, apierr.New(apierr.InvalidPort, "port must be a valid integer"))
		return
	}
	resolveInternal := r.URL.Query().Get("resolveInternal") == "true"

	endpoint, err := h.Service.GetEndpoint(r.Context(), id, port, resolveInternal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"endpoint": endpoint})
}
