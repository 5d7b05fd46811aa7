package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"

	"github.com/alibaba/OpenSandbox/internal/provider"
)

func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }

// parseConditionTime best-effort parses a condition's lastTransitionTime,
// returning the zero time on anything unparsable rather than failing the
// whole status read.
func parseConditionTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var gvr = schema.GroupVersionResource{Group: Group, Version: Version, Resource: Plural}

// Provider implements provider.Workload against the agents.x-k8s.io
// Sandbox CRD. It never supports pause/resume (the CRD has no suspend
// primitive in this spec), so both report provider.ErrUnsupported.
type Provider struct {
	client *Client
	opts   ManifestOptions
}

func NewProvider(client *Client, opts ManifestOptions) *Provider {
	return &Provider{client: client, opts: opts}
}

func (p *Provider) CreateWorkload(ctx context.Context, in provider.CreateWorkloadInput) (provider.WorkloadRef, error) {
	manifest, err := buildManifest(in, p.opts)
	if err != nil {
		return provider.WorkloadRef{}, fmt.Errorf("failed to compose sandbox manifest: %w", err)
	}

	created, err := p.client.Dynamic.Resource(gvr).Namespace(in.Namespace).Create(ctx, manifest, metav1.CreateOptions{})
	if err != nil {
		return provider.WorkloadRef{}, fmt.Errorf("failed to create sandbox workload: %w", err)
	}

	return provider.WorkloadRef{Name: created.GetName(), UID: string(created.GetUID())}, nil
}

// GetWorkload looks up the Sandbox object labeled with the given
// sandbox id, returning (nil, nil) when none exists (spec.md §4.C
// operation 2, "∅ on absence").
func (p *Provider) GetWorkload(ctx context.Context, id, namespace string) (any, error) {
	list, err := p.client.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "opensandbox.io/id=" + id,
	})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, nil
	}
	return &list.Items[0], nil
}

func (p *Provider) ListWorkloads(ctx context.Context, namespace string, labelFilter map[string]string, pageToken string) ([]any, string, error) {
	opts := metav1.ListOptions{Continue: pageToken}
	if len(labelFilter) > 0 {
		opts.LabelSelector = metav1.FormatLabelSelector(&metav1.LabelSelector{MatchLabels: labelFilter})
	}

	list, err := p.client.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list sandbox workloads: %w", err)
	}

	out := make([]any, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, &list.Items[i])
	}
	return out, list.GetContinue(), nil
}

func (p *Provider) UpdateExpiration(ctx context.Context, id, namespace string, expiresAt time.Time) error {
	workload, err := p.GetWorkload(ctx, id, namespace)
	if err != nil {
		return err
	}
	u, ok := workload.(*unstructured.Unstructured)
	if workload == nil || !ok {
		return fmt.Errorf("sandbox %s not found", id)
	}

	patch := map[string]any{
		"spec": map[string]any{
			"shutdownTime": expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		},
	}
	patchData, err := jsonMarshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal expiration patch: %w", err)
	}

	_, err = p.client.Dynamic.Resource(gvr).Namespace(namespace).Patch(ctx, u.GetName(), types.MergePatchType, patchData, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("failed to patch sandbox expiration: %w", err)
	}
	return nil
}

func (p *Provider) DeleteWorkload(ctx context.Context, id, namespace string) error {
	workload, err := p.GetWorkload(ctx, id, namespace)
	if err != nil {
		return err
	}
	if workload == nil {
		// Idempotent: a second delete is a no-op success (spec.md §7, §8).
		return nil
	}
	u := workload.(*unstructured.Unstructured)
	err = p.client.Dynamic.Resource(gvr).Namespace(namespace).Delete(ctx, u.GetName(), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete sandbox workload: %w", err)
	}
	return nil
}

func (p *Provider) PauseWorkload(ctx context.Context, id, namespace string) error {
	return provider.ErrUnsupported
}

func (p *Provider) ResumeWorkload(ctx context.Context, id, namespace string) error {
	return provider.ErrUnsupported
}

var trailingZRe = regexp.MustCompile(`Z$`)

// GetExpiration parses spec.shutdownTime, treating a trailing "Z" as
// "+00:00" (spec.md §4.C operation 7).
func (p *Provider) GetExpiration(workload any) (time.Time, error) {
	u, ok := workload.(*unstructured.Unstructured)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected workload type %T", workload)
	}
	raw, found, err := unstructured.NestedString(u.Object, "spec", "shutdownTime")
	if err != nil || !found {
		return time.Time{}, fmt.Errorf("workload has no spec.shutdownTime")
	}
	normalized := trailingZRe.ReplaceAllString(raw, "+00:00")
	t, err := time.Parse(time.RFC3339, normalized)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse shutdownTime %q: %w", raw, err)
	}
	return t.UTC(), nil
}

var readyFailedReason = regexp.MustCompile(`(?i)Failed|Error`)
var readyTerminatedReason = regexp.MustCompile(`(?i)SandboxExpired|Terminated|Deleted`)

// GetStatus derives sandbox state from the Ready condition, falling
// back to pod-phase inspection via the workload's selector when no
// Ready condition is present (spec.md §4.C "Status derivation").
func (p *Provider) GetStatus(ctx context.Context, workload any) (provider.Status, error) {
	u, ok := workload.(*unstructured.Unstructured)
	if !ok {
		return provider.Status{}, fmt.Errorf("unexpected workload type %T", workload)
	}

	conditions, _, _ := unstructured.NestedSlice(u.Object, "status", "conditions")
	for _, c := range conditions {
		cond, ok := c.(map[string]any)
		if !ok || cond["type"] != "Ready" {
			continue
		}
		reason, _ := cond["reason"].(string)
		message, _ := cond["message"].(string)
		statusVal, _ := cond["status"].(string)
		lastTransition := parseConditionTime(cond["lastTransitionTime"])

		switch statusVal {
		case "True":
			return provider.Status{State: provider.StateRunning, Reason: "SandboxReady", Message: message, LastTransitionAt: lastTransition}, nil
		case "False":
			switch {
			case readyTerminatedReason.MatchString(reason):
				return provider.Status{State: provider.StateTerminated, Reason: reason, Message: message, LastTransitionAt: lastTransition}, nil
			case readyFailedReason.MatchString(reason):
				return provider.Status{State: provider.StateFailed, Reason: reason, Message: message, LastTransitionAt: lastTransition}, nil
			default:
				return provider.Status{State: provider.StatePending, Reason: reason, Message: message, LastTransitionAt: lastTransition}, nil
			}
		}
	}

	return p.statusFromPodSelector(ctx, u)
}

func (p *Provider) statusFromPodSelector(ctx context.Context, u *unstructured.Unstructured) (provider.Status, error) {
	selector, _, _ := unstructured.NestedString(u.Object, "status", "selector")
	namespace := u.GetNamespace()
	if namespace == "" {
		namespace, _, _ = unstructured.NestedString(u.Object, "metadata", "namespace")
	}

	pods, err := p.client.CoreV1.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil || len(pods.Items) == 0 {
		klog.V(4).Infof("no pod found for sandbox selector %q: %v", selector, err)
		return provider.Status{State: provider.StatePending, Reason: "NO_POD"}, nil
	}

	pod := pods.Items[0]
	switch pod.Status.Phase {
	case corev1.PodRunning:
		return provider.Status{State: provider.StateRunning, Reason: "POD_READY"}, nil
	case corev1.PodPending:
		return provider.Status{State: provider.StatePending, Reason: "POD_PENDING"}, nil
	case corev1.PodFailed, corev1.PodUnknown:
		return provider.Status{State: provider.StateFailed, Reason: "POD_FAILED"}, nil
	default:
		return provider.Status{State: provider.StatePending, Reason: "POD_PENDING"}, nil
	}
}

// GetEndpointInfo prefers the IP of a Running pod matched by the
// workload's selector, falling back to a recorded serviceFQDN, and
// returning "" when neither is available (spec.md §4.C operation 9).
func (p *Provider) GetEndpointInfo(ctx context.Context, workload any, port int) (string, error) {
	u, ok := workload.(*unstructured.Unstructured)
	if !ok {
		return "", fmt.Errorf("unexpected workload type %T", workload)
	}

	selector, _, _ := unstructured.NestedString(u.Object, "status", "selector")
	namespace := u.GetNamespace()
	if namespace == "" {
		namespace, _, _ = unstructured.NestedString(u.Object, "metadata", "namespace")
	}

	if selector != "" {
		pods, err := p.client.CoreV1.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err == nil {
			for _, pod := range pods.Items {
				if pod.Status.Phase == corev1.PodRunning && pod.Status.PodIP != "" {
					return fmt.Sprintf("%s:%d", pod.Status.PodIP, port), nil
				}
			}
		}
	}

	fqdn, found, _ := unstructured.NestedString(u.Object, "status", "serviceFQDN")
	if found && fqdn != "" {
		return fmt.Sprintf("%s:%d", fqdn, port), nil
	}

	return "", nil
}
