package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/internal/provider"
)

type fakeProvider struct {
	created   []provider.CreateWorkloadInput
	createErr error
	workload  any
	deleteErr error
	pauseErr  error
	resumeErr error
	updateErr error
	endpoint  string
}

func (f *fakeProvider) CreateWorkload(ctx context.Context, in provider.CreateWorkloadInput) (provider.WorkloadRef, error) {
	if f.createErr != nil {
		return provider.WorkloadRef{}, f.createErr
	}
	f.created = append(f.created, in)
	return provider.WorkloadRef{Name: "sandbox-" + in.SandboxID}, nil
}

func (f *fakeProvider) GetWorkload(ctx context.Context, id, namespace string) (any, error) {
	return f.workload, nil
}

func (f *fakeProvider) ListWorkloads(ctx context.Context, namespace string, labelFilter map[string]string, pageToken string) ([]any, string, error) {
	if f.workload == nil {
		return nil, "", nil
	}
	return []any{f.workload}, "", nil
}

func (f *fakeProvider) UpdateExpiration(ctx context.Context, id, namespace string, expiresAt time.Time) error {
	return f.updateErr
}

func (f *fakeProvider) DeleteWorkload(ctx context.Context, id, namespace string) error {
	return f.deleteErr
}

func (f *fakeProvider) PauseWorkload(ctx context.Context, id, namespace string) error {
	return f.pauseErr
}

func (f *fakeProvider) ResumeWorkload(ctx context.Context, id, namespace string) error {
	return f.resumeErr
}

func (f *fakeProvider) GetExpiration(workload any) (time.Time, error) {
	return time.Now().Add(time.Hour).UTC(), nil
}

func (f *fakeProvider) GetStatus(ctx context.Context, workload any) (provider.Status, error) {
	return provider.Status{State: provider.StateRunning}, nil
}

func (f *fakeProvider) GetEndpointInfo(ctx context.Context, workload any, port int) (string, error) {
	return f.endpoint, nil
}

func TestCreate_ValidatesBeforeCallingProvider(t *testing.T) {
	fp := &fakeProvider{}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "")

	_, err := svc.Create(context.Background(), CreateInput{
		Entrypoint: nil,
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.InvalidEntrypoint, apiErr.Code())
	assert.Empty(t, fp.created)
}

func TestCreate_Succeeds(t *testing.T) {
	fp := &fakeProvider{}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "")

	sbx, err := svc.Create(context.Background(), CreateInput{
		Entrypoint: []string{"python3"},
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sbx.ID)
	assert.NotNil(t, sbx.Bindings)
	require.Len(t, fp.created, 1)
	assert.Equal(t, sbx.ID, fp.created[0].SandboxID)
}

func TestGet_NotFound(t *testing.T) {
	fp := &fakeProvider{}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "")

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.NotFound, apiErr.Code())
}

func TestDelete_IsIdempotent(t *testing.T) {
	fp := &fakeProvider{}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "")
	assert.NoError(t, svc.Delete(context.Background(), "missing"))
}

func TestPause_TranslatesUnsupported(t *testing.T) {
	fp := &fakeProvider{pauseErr: provider.ErrUnsupported}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "")

	err := svc.Pause(context.Background(), "abc")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.UnsupportedOperation, apiErr.Code())
}

func TestRenewExpiration_RejectsPastTimestamp(t *testing.T) {
	fp := &fakeProvider{}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "")

	_, err := svc.RenewExpiration(context.Background(), "abc", time.Now().Add(-time.Hour))
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.InvalidExpiration, apiErr.Code())
}

func TestGetEndpoint_RewritesHostForExternalRouter(t *testing.T) {
	fp := &fakeProvider{workload: struct{}{}, endpoint: "10.0.0.5:8080"}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "router.example.com")

	endpoint, err := svc.GetEndpoint(context.Background(), "abc", 8080, false)
	require.NoError(t, err)
	assert.Equal(t, "router.example.com:8080", endpoint)
}

func TestGetEndpoint_ResolveInternalBypassesRouter(t *testing.T) {
	fp := &fakeProvider{workload: struct{}{}, endpoint: "10.0.0.5:8080"}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "router.example.com")

	endpoint, err := svc.GetEndpoint(context.Background(), "abc", 8080, true)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:8080", endpoint)
}

func TestGetEndpoint_InvalidPort(t *testing.T) {
	fp := &fakeProvider{}
	svc := NewService(fp, "default", "execd:v1", "egress:v1", "")

	_, err := svc.GetEndpoint(context.Background(), "abc", 0, false)
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.InvalidPort, apiErr.Code())
}
