package k8s

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/alibaba/OpenSandbox/internal/provider"
	"github.com/alibaba/OpenSandbox/internal/provider/k8s/egress"
)

// ExecdPort is the fixed port the in-sandbox execd agent listens on.
const ExecdPort = 44772

const mainContainerName = "sandbox"
const execdContainerName = "execd"

// ShutdownPolicy mirrors config.ShutdownPolicy without importing
// internal/config, to keep this package dependency-light (it is only
// ever constructed with "Delete" or "Retain").
type ShutdownPolicy string

const (
	ShutdownDelete ShutdownPolicy = "Delete"
	ShutdownRetain ShutdownPolicy = "Retain"
)

// ManifestOptions carries the provider-wide settings that do not vary
// per sandbox (service account, shutdown policy).
type ManifestOptions struct {
	ShutdownPolicy ShutdownPolicy
	ServiceAccount string
}

func nameForSandbox(id string) string { return "sandbox-" + id }

// buildManifest composes the agents.x-k8s.io/v1alpha1 Sandbox CRD object
// (spec.md §4.C "Manifest composition"). Labels are assumed
// pre-validated by internal/validate.
func buildManifest(in provider.CreateWorkloadInput, opts ManifestOptions) (*unstructured.Unstructured, error) {
	labels := map[string]string{"opensandbox.io/id": in.SandboxID}
	for k, v := range in.Labels {
		labels[k] = v
	}

	podSpec, err := buildPodSpec(in, opts)
	if err != nil {
		return nil, err
	}

	obj := map[string]any{
		"apiVersion": Group + "/" + Version,
		"kind":       "Sandbox",
		"metadata": map[string]any{
			"name":      nameForSandbox(in.SandboxID),
			"namespace": in.Namespace,
			"labels":    toAnyMap(labels),
		},
		"spec": map[string]any{
			"replicas":       int64(1),
			"shutdownTime":   in.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			"shutdownPolicy": string(opts.ShutdownPolicy),
			"podTemplate": map[string]any{
				"spec": podSpec,
			},
		},
	}

	return &unstructured.Unstructured{Object: obj}, nil
}

func buildPodSpec(in provider.CreateWorkloadInput, opts ManifestOptions) (map[string]any, error) {
	mainContainer := corev1.Container{
		Name:    mainContainerName,
		Image:   in.Image.URI,
		Command: append([]string(nil), in.Entrypoint...),
		Env:     envVars(in.Env),
	}
	if limits := resourceLimits(in.ResourceLimits); limits != nil {
		mainContainer.Resources = corev1.ResourceRequirements{Limits: limits}
	}

	execdContainer := corev1.Container{
		Name:  execdContainerName,
		Image: in.ExecdImage,
		Ports: []corev1.ContainerPort{{ContainerPort: ExecdPort}},
	}

	containers := []corev1.Container{mainContainer, execdContainer}
	var initContainers []corev1.Container

	var podSecurityContext *corev1.PodSecurityContext
	if in.NetworkPolicy != nil {
		mainContainer.SecurityContext = egress.MainContainerSecurityContext(true)
		containers[0] = mainContainer

		egressContainer, err := egress.BuildSidecarContainer(in.EgressImage, *in.NetworkPolicy)
		if err != nil {
			return nil, fmt.Errorf("failed to build egress sidecar: %w", err)
		}
		containers = append(containers, egressContainer)

		podSecurityContext = &corev1.PodSecurityContext{Sysctls: egress.IPv6DisableSysctls()}
	}

	volumes, volumeMountsByContainer := buildVolumes(in.Volumes)
	containers[0].VolumeMounts = volumeMountsByContainer

	pod := corev1.PodSpec{
		ServiceAccountName: opts.ServiceAccount,
		InitContainers:     initContainers,
		Containers:         containers,
		Volumes:            volumes,
		SecurityContext:    podSecurityContext,
		RestartPolicy:      corev1.RestartPolicyNever,
	}

	return toUnstructuredPodSpec(pod)
}

func envVars(env map[string]string) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}
	out := make([]corev1.EnvVar, 0, len(env))
	for k, v := range env {
		out = append(out, corev1.EnvVar{Name: k, Value: v})
	}
	return out
}

func resourceLimits(limits map[string]string) corev1.ResourceList {
	if len(limits) == 0 {
		return nil
	}
	out := corev1.ResourceList{}
	for k, v := range limits {
		out[corev1.ResourceName(k)] = resourceQuantityOrZero(v)
	}
	return out
}

func buildVolumes(vols []provider.Volume) ([]corev1.Volume, []corev1.VolumeMount) {
	if len(vols) == 0 {
		return nil, nil
	}
	var volumes []corev1.Volume
	var mounts []corev1.VolumeMount
	for _, v := range vols {
		vol := corev1.Volume{Name: v.Name}
		switch v.Backend {
		case provider.VolumeBackendHostPath:
			vol.VolumeSource = corev1.VolumeSource{HostPath: &corev1.HostPathVolumeSource{Path: v.HostPath}}
		case provider.VolumeBackendPVC:
			vol.VolumeSource = corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: v.PVCClaim, ReadOnly: v.ReadOnly},
			}
		}
		volumes = append(volumes, vol)
		mounts = append(mounts, corev1.VolumeMount{
			Name:      v.Name,
			MountPath: v.MountPath,
			ReadOnly:  v.ReadOnly,
			SubPath:   v.SubPath,
		})
	}
	return volumes, mounts
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toUnstructuredPodSpec(pod corev1.PodSpec) (map[string]any, error) {
	obj, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&pod)
	if err != nil {
		return nil, fmt.Errorf("failed to convert pod spec: %w", err)
	}
	return obj, nil
}

// resourceQuantityOrZero parses a resource quantity string, falling
// back to the zero quantity on malformed input. Resource limits are not
// validated before they reach this point, so a malformed quantity from
// the request is silently turned into a zero limit.
func resourceQuantityOrZero(v string) resource.Quantity {
	q, err := resource.ParseQuantity(v)
	if err != nil {
		return resource.Quantity{}
	}
	return q
}
