// Package egress composes the egress-sidecar container and pod-level
// security settings that enforce a sandbox's NetworkPolicy (spec.md
// §4.D). It is grounded line-for-line on
// original_source/server/src/services/k8s/egress_helper.py: the sidecar
// receives the policy as JSON in OPENSANDBOX_EGRESS_RULES, gets
// NET_ADMIN, the main container loses it, and IPv6 is disabled pod-wide
// since containers in a pod share a network namespace.
package egress

import (
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/alibaba/OpenSandbox/internal/provider"
)

// RulesEnvVar is the environment variable carrying the serialized
// NetworkPolicy into the egress sidecar.
const RulesEnvVar = "OPENSANDBOX_EGRESS_RULES"

// ContainerName is the fixed name of the egress sidecar container.
const ContainerName = "egress"

type wirePolicy struct {
	DefaultAction string      `json:"defaultAction"`
	Egress        []wireRule  `json:"egress,omitempty"`
}

type wireRule struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

func toWire(p provider.NetworkPolicy) wirePolicy {
	rules := make([]wireRule, 0, len(p.Egress))
	for _, r := range p.Egress {
		rules = append(rules, wireRule{Action: r.Action, Target: r.Target})
	}
	return wirePolicy{DefaultAction: p.DefaultAction, Egress: rules}
}

// BuildSidecarContainer returns the egress container to append to the
// pod spec's container list.
func BuildSidecarContainer(image string, policy provider.NetworkPolicy) (corev1.Container, error) {
	payload, err := json.Marshal(toWire(policy))
	if err != nil {
		return corev1.Container{}, fmt.Errorf("failed to marshal network policy: %w", err)
	}

	return corev1.Container{
		Name:  ContainerName,
		Image: image,
		Env: []corev1.EnvVar{
			{Name: RulesEnvVar, Value: string(payload)},
		},
		SecurityContext: &corev1.SecurityContext{
			Capabilities: &corev1.Capabilities{
				Add: []corev1.Capability{"NET_ADMIN"},
			},
		},
	}, nil
}

// MainContainerSecurityContext returns the security context the main
// sandbox container should carry. When hasNetworkPolicy is false it
// returns nil (no change from the container's own settings).
func MainContainerSecurityContext(hasNetworkPolicy bool) *corev1.SecurityContext {
	if !hasNetworkPolicy {
		return nil
	}
	return &corev1.SecurityContext{
		Capabilities: &corev1.Capabilities{
			Drop: []corev1.Capability{"NET_ADMIN"},
		},
	}
}

// IPv6DisableSysctls returns the pod-level sysctls that disable IPv6
// across the shared network namespace, to keep egress enforcement
// consistent with the Docker backend.
func IPv6DisableSysctls() []corev1.Sysctl {
	return []corev1.Sysctl{
		{Name: "net.ipv6.conf.all.disable_ipv6", Value: "1"},
		{Name: "net.ipv6.conf.default.disable_ipv6", Value: "1"},
		{Name: "net.ipv6.conf.lo.disable_ipv6", Value: "1"},
	}
}
