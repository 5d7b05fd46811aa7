package egress

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/alibaba/OpenSandbox/internal/provider"
)

func TestBuildSidecarContainer_RoundTripsPolicyJSON(t *testing.T) {
	policy := provider.NetworkPolicy{
		DefaultAction: "deny",
		Egress:        []provider.NetworkRule{{Action: "allow", Target: "pypi.org"}},
	}

	container, err := BuildSidecarContainer("opensandbox/egress:v1.0.0", policy)
	require.NoError(t, err)
	assert.Equal(t, ContainerName, container.Name)
	assert.Equal(t, "opensandbox/egress:v1.0.0", container.Image)

	require.Len(t, container.Env, 1)
	assert.Equal(t, RulesEnvVar, container.Env[0].Name)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(container.Env[0].Value), &decoded))
	assert.Equal(t, "deny", decoded["defaultAction"])
	rules := decoded["egress"].([]any)
	require.Len(t, rules, 1)
	rule := rules[0].(map[string]any)
	assert.Equal(t, "allow", rule["action"])
	assert.Equal(t, "pypi.org", rule["target"])

	require.NotNil(t, container.SecurityContext)
	require.NotNil(t, container.SecurityContext.Capabilities)
	assert.Contains(t, container.SecurityContext.Capabilities.Add, corev1.Capability("NET_ADMIN"))
}

func TestMainContainerSecurityContext(t *testing.T) {
	assert.Nil(t, MainContainerSecurityContext(false))

	sc := MainContainerSecurityContext(true)
	require.NotNil(t, sc)
	require.NotNil(t, sc.Capabilities)
	assert.Contains(t, sc.Capabilities.Drop, corev1.Capability("NET_ADMIN"))
}

func TestIPv6DisableSysctls(t *testing.T) {
	sysctls := IPv6DisableSysctls()
	require.Len(t, sysctls, 3)
	values := map[string]string{}
	for _, s := range sysctls {
		values[s.Name] = s.Value
	}
	assert.Equal(t, "1", values["net.ipv6.conf.all.disable_ipv6"])
	assert.Equal(t, "1", values["net.ipv6.conf.default.disable_ipv6"])
	assert.Equal(t, "1", values["net.ipv6.conf.lo.disable_ipv6"])
}
