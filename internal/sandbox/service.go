package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/internal/provider"
	"github.com/alibaba/OpenSandbox/internal/validate"
)

// CreateInput bundles the arguments accepted by Service.Create
// (spec.md §4.E "create").
type CreateInput struct {
	Image          provider.ImageSpec
	Entrypoint     []string
	Env            map[string]string
	ResourceLimits map[string]string
	Metadata       map[string]string
	NetworkPolicy  *provider.NetworkPolicy
	Volumes        []provider.Volume
	ExpiresAt      time.Time
}

// Service is the public orchestrator wired to one backing
// provider.Workload. It owns no state of its own: every operation reads
// and writes through the provider.
type Service struct {
	Provider       provider.Workload
	Namespace      string
	ExecdImage     string
	EgressImage    string
	ExternalRouter string // public host of a configured external router, "" if none
}

// NewService wires a Sandbox Service atop the given provider.
func NewService(p provider.Workload, namespace, execdImage, egressImage, externalRouter string) *Service {
	return &Service{Provider: p, Namespace: namespace, ExecdImage: execdImage, EgressImage: egressImage, ExternalRouter: externalRouter}
}

// GenerateSandboxID returns a fresh RFC-4122 v4 UUID string (spec.md
// §4.B).
func GenerateSandboxID() string {
	return uuid.New().String()
}

// Create validates the request, generates an id, composes labels, and
// delegates to the provider (spec.md §4.E "create").
func (s *Service) Create(ctx context.Context, in CreateInput) (Sandbox, error) {
	if err := validate.Entrypoint(in.Entrypoint); err != nil {
		return Sandbox{}, err
	}
	if err := validate.MetadataLabels(in.Metadata); err != nil {
		return Sandbox{}, err
	}
	expiresAt, err := validate.FutureExpiration(in.ExpiresAt)
	if err != nil {
		return Sandbox{}, err
	}

	id := GenerateSandboxID()
	labels := make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		labels[k] = v
	}

	_, err = s.Provider.CreateWorkload(ctx, provider.CreateWorkloadInput{
		SandboxID:      id,
		Namespace:      s.Namespace,
		Image:          in.Image,
		Entrypoint:     in.Entrypoint,
		Env:            in.Env,
		ResourceLimits: in.ResourceLimits,
		Labels:         labels,
		ExpiresAt:      expiresAt,
		ExecdImage:     s.ExecdImage,
		EgressImage:    s.EgressImage,
		NetworkPolicy:  in.NetworkPolicy,
		Volumes:        in.Volumes,
	})
	if err != nil {
		return Sandbox{}, classifyCreateError(err)
	}

	return Sandbox{
		ID:             id,
		Image:          in.Image,
		Entrypoint:     in.Entrypoint,
		Env:            in.Env,
		ResourceLimits: in.ResourceLimits,
		Metadata:       in.Metadata,
		NetworkPolicy:  in.NetworkPolicy,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now().UTC(),
		Bindings:       map[int]string{},
		Status:         provider.Status{State: provider.StatePending},
	}, nil
}

// classifyCreateError maps a provider failure to K8S_INITIALIZATION_ERROR
// when the infrastructure itself looks unreachable, CREATE_FAILED
// otherwise (spec.md §4.E).
func classifyCreateError(err error) error {
	if existing, ok := apierr.As(err); ok {
		return existing
	}
	if isInfrastructureUnreachable(err) {
		return apierr.Wrap(apierr.K8sInitializationErr, "kubernetes infrastructure unreachable", err)
	}
	return apierr.Wrap(apierr.CreateFailed, "failed to create sandbox workload", err)
}

func isInfrastructureUnreachable(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr)
}

// List translates every provider workload to a Sandbox DTO (spec.md
// §4.E "list").
func (s *Service) List(ctx context.Context, labelFilter map[string]string, pageToken string) ([]Sandbox, string, error) {
	workloads, nextToken, err := s.Provider.ListWorkloads(ctx, s.Namespace, labelFilter, pageToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list sandbox workloads: %w", err)
	}

	sandboxes := make([]Sandbox, 0, len(workloads))
	for _, wl := range workloads {
		built, err := buildSandboxFromWorkload(ctx, s.Provider, wl)
		if err != nil {
			continue
		}
		sandboxes = append(sandboxes, built)
	}
	return sandboxes, nextToken, nil
}

// Get fetches a single sandbox, translating provider absence to
// NOT_FOUND (spec.md §4.E "get").
func (s *Service) Get(ctx context.Context, id string) (Sandbox, error) {
	workload, err := s.Provider.GetWorkload(ctx, id, s.Namespace)
	if err != nil {
		return Sandbox{}, fmt.Errorf("failed to look up sandbox %s: %w", id, err)
	}
	if workload == nil {
		return Sandbox{}, apierr.New(apierr.NotFound, fmt.Sprintf("sandbox %s not found", id))
	}
	return buildSandboxFromWorkload(ctx, s.Provider, workload)
}

// Delete removes the backing workload. A second delete of an already
// absent sandbox returns success (spec.md §4.E "delete").
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Provider.DeleteWorkload(ctx, id, s.Namespace); err != nil {
		return fmt.Errorf("failed to delete sandbox %s: %w", id, err)
	}
	return nil
}

// Pause delegates to the provider, surfacing UNSUPPORTED_OPERATION when
// the provider variant cannot pause (spec.md §4.E "pause/resume").
func (s *Service) Pause(ctx context.Context, id string) error {
	return translateUnsupported(s.Provider.PauseWorkload(ctx, id, s.Namespace))
}

// Resume delegates to the provider, surfacing UNSUPPORTED_OPERATION when
// the provider variant cannot resume.
func (s *Service) Resume(ctx context.Context, id string) error {
	return translateUnsupported(s.Provider.ResumeWorkload(ctx, id, s.Namespace))
}

func translateUnsupported(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, provider.ErrUnsupported) {
		return apierr.New(apierr.UnsupportedOperation, "operation not supported by the configured workload provider")
	}
	return err
}

// RenewExpiration validates the new expiration is still in the future
// and pushes it to the provider (spec.md §4.E "renew_expiration").
func (s *Service) RenewExpiration(ctx context.Context, id string, expiresAt time.Time) (time.Time, error) {
	normalized, err := validate.FutureExpiration(expiresAt)
	if err != nil {
		return time.Time{}, err
	}
	if err := s.Provider.UpdateExpiration(ctx, id, s.Namespace, normalized); err != nil {
		return time.Time{}, fmt.Errorf("failed to renew expiration for sandbox %s: %w", id, err)
	}
	return normalized, nil
}

// GetEndpoint resolves the advertised host:port for a sandbox's exposed
// port (spec.md §4.E "get_endpoint", §4.F).
func (s *Service) GetEndpoint(ctx context.Context, id string, port int, resolveInternal bool) (string, error) {
	if err := validate.Port(port); err != nil {
		return "", err
	}

	workload, err := s.Provider.GetWorkload(ctx, id, s.Namespace)
	if err != nil {
		return "", fmt.Errorf("failed to look up sandbox %s: %w", id, err)
	}
	if workload == nil {
		return "", apierr.New(apierr.NotFound, fmt.Sprintf("sandbox %s not found", id))
	}

	endpoint, err := s.Provider.GetEndpointInfo(ctx, workload, port)
	if err != nil {
		return "", fmt.Errorf("failed to resolve endpoint for sandbox %s: %w", id, err)
	}
	if endpoint == "" {
		return "", nil
	}

	if !resolveInternal && s.ExternalRouter != "" {
		return rewriteHost(endpoint, s.ExternalRouter), nil
	}
	return endpoint, nil
}

func rewriteHost(hostPort, newHost string) string {
	_, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return hostPort
	}
	return newHost + ":" + port
}
