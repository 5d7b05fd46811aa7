// Package local is a placeholder Workload Provider variant for a local
// container engine backend. Nothing in the example corpus ships a local
// container runtime client (no Docker/containerd/Podman SDK appears in
// any of the retrieved repos), so every operation, including the
// read-only ones, reports provider.ErrUnsupported rather than
// hand-rolling an engine client with no grounding. There is no
// in-memory state: nothing is stashed across calls.
package local

import (
	"context"
	"time"

	"github.com/alibaba/OpenSandbox/internal/provider"
)

// Provider satisfies provider.Workload without a backing runtime.
type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) CreateWorkload(ctx context.Context, in provider.CreateWorkloadInput) (provider.WorkloadRef, error) {
	return provider.WorkloadRef{}, provider.ErrUnsupported
}

func (p *Provider) GetWorkload(ctx context.Context, id, namespace string) (any, error) {
	return nil, provider.ErrUnsupported
}

func (p *Provider) ListWorkloads(ctx context.Context, namespace string, labelFilter map[string]string, pageToken string) ([]any, string, error) {
	return nil, "", provider.ErrUnsupported
}

func (p *Provider) UpdateExpiration(ctx context.Context, id, namespace string, expiresAt time.Time) error {
	return provider.ErrUnsupported
}

func (p *Provider) DeleteWorkload(ctx context.Context, id, namespace string) error {
	return provider.ErrUnsupported
}

func (p *Provider) PauseWorkload(ctx context.Context, id, namespace string) error {
	return provider.ErrUnsupported
}

func (p *Provider) ResumeWorkload(ctx context.Context, id, namespace string) error {
	return provider.ErrUnsupported
}

func (p *Provider) GetExpiration(workload any) (time.Time, error) {
	return time.Time{}, provider.ErrUnsupported
}

func (p *Provider) GetStatus(ctx context.Context, workload any) (provider.Status, error) {
	return provider.Status{}, provider.ErrUnsupported
}

func (p *Provider) GetEndpointInfo(ctx context.Context, workload any, port int) (string, error) {
	return "", provider.ErrUnsupported
}
