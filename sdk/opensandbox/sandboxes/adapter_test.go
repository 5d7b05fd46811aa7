package sandboxes

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/OpenSandbox/internal/apierr"
	"github.com/alibaba/OpenSandbox/sdk/opensandbox"
)

type fakeRoundTripper struct {
	status   int
	body     string
	lastReq  *http.Request
	lastBody []byte
}

func (f *fakeRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if req.Body != nil {
		f.lastBody, _ = io.ReadAll(req.Body)
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Header:     make(http.Header),
	}, nil
}

func newTestAdapter(rt *fakeRoundTripper) *Adapter {
	cfg, err := opensandbox.NewConnectionConfig(
		opensandbox.WithDomain("example.test"),
		opensandbox.WithAPIKey("secret-key"),
		opensandbox.WithTransport(rt),
	)
	if err != nil {
		panic(err)
	}
	return NewAdapter(cfg)
}

func TestCreate_SendsAPIKeyAndDecodesSandbox(t *testing.T) {
	body := `{"id":"sbx-1","image":{"uri":"alpine:3"},"entrypoint":["sleep","1"],"status":{"state":"Pending"},"bindings":{}}`
	rt := &fakeRoundTripper{status: http.StatusCreated, body: body}
	adapter := newTestAdapter(rt)

	sbx, err := adapter.Create(CreateInput{
		Image:      Image{URI: "alpine:3"},
		Entrypoint: []string{"sleep", "1"},
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "sbx-1", sbx.ID)
	assert.Equal(t, "secret-key", rt.lastReq.Header.Get(apiKeyHeader))
	assert.Equal(t, http.MethodPost, rt.lastReq.Method)

	var sent createRequest
	require.NoError(t, json.Unmarshal(rt.lastBody, &sent))
	assert.Equal(t, "alpine:3", sent.Image.URI)
}

func TestList_EncodesLabelFilterAndPageToken(t *testing.T) {
	body := `{"sandboxes":[],"nextPageToken":"tok-2"}`
	rt := &fakeRoundTripper{status: http.StatusOK, body: body}
	adapter := newTestAdapter(rt)

	sandboxes, next, err := adapter.List(map[string]string{"team": "infra"}, "tok-1")
	require.NoError(t, err)
	assert.Empty(t, sandboxes)
	assert.Equal(t, "tok-2", next)
	assert.Contains(t, rt.lastReq.URL.RawQuery, "team=infra")
	assert.Contains(t, rt.lastReq.URL.RawQuery, "pageToken=tok-1")
}

func TestDelete_IsNoContent(t *testing.T) {
	rt := &fakeRoundTripper{status: http.StatusNoContent, body: ""}
	adapter := newTestAdapter(rt)

	err := adapter.Delete("sbx-1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, rt.lastReq.Method)
}

func TestGet_NonMatchingStatusDecodesErrorEnvelope(t *testing.T) {
	body := `{"code":"NOT_FOUND","message":"sandbox sbx-missing not found"}`
	rt := &fakeRoundTripper{status: http.StatusNotFound, body: body}
	adapter := newTestAdapter(rt)

	_, err := adapter.Get("sbx-missing")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.NotFound, apiErr.Code())
	assert.Contains(t, apiErr.Message(), "sbx-missing")
}

func TestGetEndpoint_EncodesPortAndResolveInternal(t *testing.T) {
	body := `{"endpoint":"10.0.0.5:8080"}`
	rt := &fakeRoundTripper{status: http.StatusOK, body: body}
	adapter := newTestAdapter(rt)

	endpoint, err := adapter.GetEndpoint("sbx-1", 8080, true)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:8080", endpoint)
	assert.Contains(t, rt.lastReq.URL.RawQuery, "port=8080")
	assert.Contains(t, rt.lastReq.URL.RawQuery, "resolveInternal=true")
}
