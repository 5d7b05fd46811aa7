package k8s

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	"github.com/alibaba/OpenSandbox/internal/provider"
)

func newFakeProvider(objects ...runtime.Object) (*Provider, *dynamicfake.FakeDynamicClient) {
	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{gvr: "SandboxList"}
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds, objects...)
	core := k8sfake.NewSimpleClientset()
	p := NewProvider(&Client{Dynamic: dyn, CoreV1: core, Namespace: "default"}, ManifestOptions{ShutdownPolicy: ShutdownDelete, ServiceAccount: "opensandbox"})
	return p, dyn
}

func sandboxObject(id, namespace string, extra map[string]any) *unstructured.Unstructured {
	obj := map[string]any{
		"apiVersion": Group + "/" + Version,
		"kind":       "Sandbox",
		"metadata": map[string]any{
			"name":      nameForSandbox(id),
			"namespace": namespace,
			"labels":    map[string]any{"opensandbox.io/id": id},
		},
		"spec": map[string]any{},
	}
	for k, v := range extra {
		obj[k] = v
	}
	return &unstructured.Unstructured{Object: obj}
}

func TestCreateWorkload(t *testing.T) {
	p, dyn := newFakeProvider()

	ref, err := p.CreateWorkload(context.Background(), provider.CreateWorkloadInput{
		SandboxID:  "abc123",
		Namespace:  "default",
		Image:      provider.ImageSpec{URI: "python:3.11"},
		Entrypoint: []string{"python3"},
		ExecdImage: "opensandbox/execd:v1",
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, nameForSandbox("abc123"), ref.Name)

	list, err := dyn.Resource(gvr).Namespace("default").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestGetWorkload_ReturnsNilOnAbsence(t *testing.T) {
	p, _ := newFakeProvider()
	workload, err := p.GetWorkload(context.Background(), "missing", "default")
	require.NoError(t, err)
	assert.Nil(t, workload)
}

func TestGetWorkload_Found(t *testing.T) {
	existing := sandboxObject("abc123", "default", nil)
	p, _ := newFakeProvider(existing)

	workload, err := p.GetWorkload(context.Background(), "abc123", "default")
	require.NoError(t, err)
	require.NotNil(t, workload)
	u := workload.(*unstructured.Unstructured)
	assert.Equal(t, nameForSandbox("abc123"), u.GetName())
}

func TestDeleteWorkload_IdempotentOnMissing(t *testing.T) {
	p, _ := newFakeProvider()
	err := p.DeleteWorkload(context.Background(), "missing", "default")
	assert.NoError(t, err)
}

func TestDeleteWorkload_RemovesExisting(t *testing.T) {
	existing := sandboxObject("abc123", "default", nil)
	p, dyn := newFakeProvider(existing)

	require.NoError(t, p.DeleteWorkload(context.Background(), "abc123", "default"))

	list, err := dyn.Resource(gvr).Namespace("default").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestUpdateExpiration_PatchesSpec(t *testing.T) {
	existing := sandboxObject("abc123", "default", nil)
	p, _ := newFakeProvider(existing)

	newExpiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, p.UpdateExpiration(context.Background(), "abc123", "default", newExpiry))

	workload, err := p.GetWorkload(context.Background(), "abc123", "default")
	require.NoError(t, err)
	expiry, err := p.GetExpiration(workload)
	require.NoError(t, err)
	assert.True(t, newExpiry.Equal(expiry))
}

func TestPauseResume_Unsupported(t *testing.T) {
	p, _ := newFakeProvider()
	assert.ErrorIs(t, p.PauseWorkload(context.Background(), "x", "default"), provider.ErrUnsupported)
	assert.ErrorIs(t, p.ResumeWorkload(context.Background(), "x", "default"), provider.ErrUnsupported)
}

func TestGetExpiration_ParsesZSuffix(t *testing.T) {
	existing := sandboxObject("abc123", "default", map[string]any{
		"spec": map[string]any{"shutdownTime": "2030-06-01T12:00:00Z"},
	})
	p, _ := newFakeProvider()

	expiry, err := p.GetExpiration(existing)
	require.NoError(t, err)
	assert.Equal(t, 2030, expiry.Year())
	assert.Equal(t, time.UTC, expiry.Location())
}

func TestGetStatus_ReadyConditionTrue(t *testing.T) {
	existing := sandboxObject("abc123", "default", map[string]any{
		"status": map[string]any{
			"conditions": []any{
				map[string]any{"type": "Ready", "status": "True", "reason": "SandboxReady"},
			},
		},
	})
	p, _ := newFakeProvider()

	status, err := p.GetStatus(context.Background(), existing)
	require.NoError(t, err)
	assert.Equal(t, provider.StateRunning, status.State)
}

func TestGetStatus_ReadyConditionFalseExpired(t *testing.T) {
	existing := sandboxObject("abc123", "default", map[string]any{
		"status": map[string]any{
			"conditions": []any{
				map[string]any{"type": "Ready", "status": "False", "reason": "SandboxExpired"},
			},
		},
	})
	p, _ := newFakeProvider()

	status, err := p.GetStatus(context.Background(), existing)
	require.NoError(t, err)
	assert.Equal(t, provider.StateTerminated, status.State)
}

func TestGetStatus_FallsBackToPodSelector(t *testing.T) {
	existing := sandboxObject("abc123", "default", map[string]any{
		"status": map[string]any{"selector": "opensandbox.io/id=abc123"},
	})
	p, _ := newFakeProvider()
	_, err := p.client.CoreV1.CoreV1().Pods("default").Create(context.Background(), &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "sandbox-abc123-0", Labels: map[string]string{"opensandbox.io/id": "abc123"}},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}, metav1.CreateOptions{})
	require.NoError(t, err)

	status, err := p.GetStatus(context.Background(), existing)
	require.NoError(t, err)
	assert.Equal(t, provider.StateRunning, status.State)
}

func TestGetEndpointInfo_PrefersRunningPod(t *testing.T) {
	existing := sandboxObject("abc123", "default", map[string]any{
		"status": map[string]any{"selector": "opensandbox.io/id=abc123", "serviceFQDN": "sandbox-abc123.default.svc"},
	})
	p, _ := newFakeProvider()
	_, err := p.client.CoreV1.CoreV1().Pods("default").Create(context.Background(), &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "sandbox-abc123-0", Labels: map[string]string{"opensandbox.io/id": "abc123"}},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning, PodIP: "10.0.0.5"},
	}, metav1.CreateOptions{})
	require.NoError(t, err)

	endpoint, err := p.GetEndpointInfo(context.Background(), existing, 8080)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:8080", endpoint)
}

func TestGetEndpointInfo_FallsBackToServiceFQDN(t *testing.T) {
	existing := sandboxObject("abc123", "default", map[string]any{
		"status": map[string]any{"serviceFQDN": "sandbox-abc123.default.svc"},
	})
	p, _ := newFakeProvider()

	endpoint, err := p.GetEndpointInfo(context.Background(), existing, 8080)
	require.NoError(t, err)
	assert.Equal(t, "sandbox-abc123.default.svc:8080", endpoint)
}

func TestGetEndpointInfo_EmptyWhenNeitherAvailable(t *testing.T) {
	existing := sandboxObject("abc123", "default", nil)
	p, _ := newFakeProvider()

	endpoint, err := p.GetEndpointInfo(context.Background(), existing, 8080)
	require.NoError(t, err)
	assert.Empty(t, endpoint)
}
