// Package sandbox implements the runtime-agnostic Sandbox Service
// (spec.md §4.E): the public lifecycle orchestrator built atop a single
// provider.Workload implementation. It is grounded on
// original_source/server/src/services/sandbox_service.py and
// original_source/server/tests/test_agent_sandbox_service.py for the
// exact DTO-building and bind-IP semantics, and on the teacher's
// service-layer structuring (validate, then call the client, then
// translate errors) for the Go idiom.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/alibaba/OpenSandbox/internal/provider"
)

// Sandbox is the control-plane DTO returned to API callers (spec.md
// §3's Sandbox entity).
type Sandbox struct {
	ID             string
	Image          provider.ImageSpec
	Entrypoint     []string
	Env            map[string]string
	ResourceLimits map[string]string
	Metadata       map[string]string
	NetworkPolicy  *provider.NetworkPolicy
	ExpiresAt      time.Time
	CreatedAt      time.Time
	Status         provider.Status
	Bindings       map[int]string
}

// buildSandboxFromWorkload translates a provider-native workload object
// into a Sandbox DTO: labels supply id and user metadata, the first pod
// template container supplies image/entrypoint, and expiration/status
// are read back through the provider (matches
// test_build_sandbox_from_workload_dict exactly, including dropping the
// reserved opensandbox.io/id label from Metadata).
func buildSandboxFromWorkload(ctx context.Context, wl provider.Workload, workload any) (Sandbox, error) {
	u, ok := workload.(*unstructured.Unstructured)
	if !ok {
		return Sandbox{}, fmt.Errorf("unexpected workload type %T", workload)
	}

	labels := u.GetLabels()
	id := labels["opensandbox.io/id"]
	metadata := make(map[string]string, len(labels))
	for k, v := range labels {
		if k == "opensandbox.io/id" {
			continue
		}
		metadata[k] = v
	}

	image, entrypoint := firstContainerImageAndCommand(u)

	createdAt := u.GetCreationTimestamp().UTC()

	sandbox := Sandbox{
		ID:         id,
		Image:      image,
		Entrypoint: entrypoint,
		Metadata:   metadata,
		CreatedAt:  createdAt,
		Bindings:   map[int]string{},
	}

	if expiresAt, err := wl.GetExpiration(workload); err == nil {
		sandbox.ExpiresAt = expiresAt
	}
	if status, err := wl.GetStatus(ctx, workload); err == nil {
		sandbox.Status = status
	}

	return sandbox, nil
}

func firstContainerImageAndCommand(u *unstructured.Unstructured) (provider.ImageSpec, []string) {
	containers, found, err := unstructured.NestedSlice(u.Object, "spec", "podTemplate", "spec", "containers")
	if err != nil || !found || len(containers) == 0 {
		return provider.ImageSpec{}, nil
	}
	first, ok := containers[0].(map[string]any)
	if !ok {
		return provider.ImageSpec{}, nil
	}

	uri, _ := first["image"].(string)
	var entrypoint []string
	if cmd, ok := first["command"].([]any); ok {
		entrypoint = make([]string, 0, len(cmd))
		for _, c := range cmd {
			if s, ok := c.(string); ok {
				entrypoint = append(entrypoint, s)
			}
		}
	}
	return provider.ImageSpec{URI: uri}, entrypoint
}
