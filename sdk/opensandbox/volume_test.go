package opensandbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolume_RoundTripsExplicitFalseDistinctFromAbsent(t *testing.T) {
	withExplicitFalse := Volume{Name: "data", MountPath: "/data", ReadOnly: boolPtr(false)}
	absent := Volume{Name: "data", MountPath: "/data"}

	explicitJSON, err := json.Marshal(withExplicitFalse)
	require.NoError(t, err)
	absentJSON, err := json.Marshal(absent)
	require.NoError(t, err)

	assert.Contains(t, string(explicitJSON), `"readOnly":false`)
	assert.NotContains(t, string(absentJSON), "readOnly")

	var decoded Volume
	require.NoError(t, json.Unmarshal(explicitJSON, &decoded))
	require.NotNil(t, decoded.ReadOnly)
	assert.False(t, *decoded.ReadOnly)

	var decodedAbsent Volume
	require.NoError(t, json.Unmarshal(absentJSON, &decodedAbsent))
	assert.Nil(t, decodedAbsent.ReadOnly)
}

func TestVolume_HostBackendRoundTrips(t *testing.T) {
	v := Volume{Name: "cache", MountPath: "/cache", Host: &Host{Path: "/srv/cache"}, SubPath: stringPtr("logs")}

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded Volume
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Host)
	assert.Equal(t, "/srv/cache", decoded.Host.Path)
	require.NotNil(t, decoded.SubPath)
	assert.Equal(t, "logs", *decoded.SubPath)
	assert.Nil(t, decoded.PVC)
}
