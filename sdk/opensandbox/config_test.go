package opensandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv(envAPIKey, "k1")
	cfg, err := NewConnectionConfig()
	require.NoError(t, err)
	assert.Equal(t, "k1", cfg.APIKey())
}

func TestDomainFromEnvAndDefault(t *testing.T) {
	t.Setenv(envDomain, "")
	cfg, err := NewConnectionConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultDomain, cfg.Domain())

	t.Setenv(envDomain, "example.com:8081")
	cfg2, err := NewConnectionConfig()
	require.NoError(t, err)
	assert.Equal(t, "example.com:8081", cfg2.Domain())
}

func TestExplicitDomainWinsOverEnv(t *testing.T) {
	t.Setenv(envDomain, "example.com:8081")
	cfg, err := NewConnectionConfig(WithDomain("explicit:9000"))
	require.NoError(t, err)
	assert.Equal(t, "explicit:9000", cfg.Domain())
}

func TestTimeoutMustBePositive(t *testing.T) {
	_, err := NewConnectionConfig(WithRequestTimeout(time.Second))
	require.NoError(t, err)

	_, err = NewConnectionConfig(WithRequestTimeout(0))
	require.Error(t, err)
}

func TestProtocolDefaultsToHTTPS(t *testing.T) {
	cfg, err := NewConnectionConfig()
	require.NoError(t, err)
	assert.Equal(t, "https", cfg.Protocol())
	assert.Equal(t, "https://"+DefaultDomain, cfg.BaseURL())
}
