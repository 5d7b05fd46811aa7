// Package k8s implements the "agent-sandbox-CRD" Workload Provider
// variant (spec.md §4.C) against the agents.x-k8s.io/v1alpha1 Sandbox
// custom resource. Client construction (in-cluster vs kubeconfig
// resolution) mirrors the teacher's pkg/kubernetes/configuration.go.
package k8s

import (
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	Group   = "agents.x-k8s.io"
	Version = "v1alpha1"
	Plural  = "sandboxes"
)

// Client wraps the dynamic and typed clientsets the provider needs: the
// dynamic client drives CRD CRUD, the typed CoreV1 client backs the
// pod-selector status/endpoint fallback (spec.md §4.C).
type Client struct {
	Dynamic   dynamic.Interface
	CoreV1    kubernetes.Interface
	Namespace string
}

// NewClient resolves a *rest.Config the same way the teacher does:
// prefer in-cluster config, fall back to the kubeconfig at path (or the
// client-go default loading rules when path is empty).
func NewClient(kubeconfigPath, namespace string) (*Client, error) {
	restCfg, err := resolveRestConfig(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve kubernetes config: %w", err)
	}

	dyn, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dynamic client: %w", err)
	}
	core, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build core client: %w", err)
	}

	return &Client{Dynamic: dyn, CoreV1: core, Namespace: namespace}, nil
}

// Ping verifies the API server is reachable with the client's
// credentials, for use as a readiness probe (internal/health).
func (c *Client) Ping() error {
	if _, err := c.CoreV1.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("kubernetes api server unreachable: %w", err)
	}
	return nil
}

func resolveRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	overrides := &clientcmd.ConfigOverrides{}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}
