// Package config resolves the control-plane server's runtime
// configuration: listen address, Kubernetes namespace/kubeconfig, the
// execd/egress sidecar images and the shutdown policy applied to newly
// created workloads. Resolution order for every setting is explicit
// flag -> environment variable -> compiled default, bound through
// spf13/viper the same way the teacher's cmd/root.go binds cobra flags.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ShutdownPolicy mirrors the CRD's spec.shutdownPolicy enum.
type ShutdownPolicy string

const (
	ShutdownDelete ShutdownPolicy = "Delete"
	ShutdownRetain ShutdownPolicy = "Retain"
)

// ServerConfig is the fully-resolved configuration for the control-plane
// HTTP server.
type ServerConfig struct {
	Host   string
	Port   int
	APIKey string

	Namespace      string
	KubeconfigPath string
	ServiceAccount string

	ExecdImage     string
	EgressImage    string
	ShutdownPolicy ShutdownPolicy
}

// Defaults match spec.md §4.B.
const (
	DefaultDomain = "localhost:8080"
)

func init() {
	viper.SetEnvPrefix("OPEN_SANDBOX")
	viper.AutomaticEnv()
}

// Load resolves a ServerConfig from viper, which must already have the
// server's cobra flags bound via viper.BindPFlags. Values fall back to
// the documented compiled defaults when neither a flag nor an
// environment variable is set.
func Load() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Host:           viper.GetString("host"),
		Port:           viper.GetInt("port"),
		APIKey:         viper.GetString("api-key"),
		Namespace:      viper.GetString("namespace"),
		KubeconfigPath: viper.GetString("kubeconfig"),
		ServiceAccount: viper.GetString("service-account"),
		ExecdImage:     viper.GetString("execd-image"),
		EgressImage:    viper.GetString("egress-image"),
		ShutdownPolicy: ShutdownPolicy(viper.GetString("shutdown-policy")),
	}

	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.ExecdImage == "" {
		return nil, fmt.Errorf("execd-image must be configured")
	}
	if cfg.ShutdownPolicy == "" {
		cfg.ShutdownPolicy = ShutdownDelete
	}
	if cfg.ShutdownPolicy != ShutdownDelete && cfg.ShutdownPolicy != ShutdownRetain {
		return nil, fmt.Errorf("invalid shutdown-policy %q: must be Delete or Retain", cfg.ShutdownPolicy)
	}

	return cfg, nil
}
