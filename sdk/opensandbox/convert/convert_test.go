package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCommandStatus_UnwrapsPresentValues(t *testing.T) {
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{"id":"cmd-1","running":true,"exit_code":0}`), &raw))

	status := ToCommandStatus(raw)
	id, ok := status.ID.Get()
	require.True(t, ok)
	assert.Equal(t, "cmd-1", id)

	running, ok := status.Running.Get()
	require.True(t, ok)
	assert.True(t, running)

	_, ok = status.Content.Get()
	assert.False(t, ok)
	assert.True(t, status.Content.IsAbsent())
}

func TestToCommandStatus_NullBecomesNullNotAbsent(t *testing.T) {
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{"error":null}`), &raw))

	status := ToCommandStatus(raw)
	assert.True(t, status.Error.IsNull())
	assert.False(t, status.Error.IsAbsent())
}

func TestToCommandStatus_MissingKeyIsAbsent(t *testing.T) {
	status := ToCommandStatus(map[string]json.RawMessage{})
	assert.True(t, status.ID.IsAbsent())
	assert.False(t, status.ID.IsNull())
}
