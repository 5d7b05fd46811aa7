// Package convert unwraps execd wire DTOs into SDK domain models
// (spec.md §4.I), grounded on
// original_source/sdks/sandbox/python/.../converter/command_model_converter.py.
// Each field is read from a raw JSON object by key: a missing key stays
// Absent, a `null` value becomes Null, anything else is unmarshaled into
// Some(value); a value that fails to unmarshal into the field's type is
// treated as Absent.
package convert

import (
	"encoding/json"
	"time"

	"github.com/alibaba/OpenSandbox/sdk/opensandbox"
)

func unwrapString(raw map[string]json.RawMessage, key string) opensandbox.Optional[string] {
	var v string
	return unwrapInto(raw, key, &v)
}

func unwrapBool(raw map[string]json.RawMessage, key string) opensandbox.Optional[bool] {
	var v bool
	return unwrapInto(raw, key, &v)
}

func unwrapInt(raw map[string]json.RawMessage, key string) opensandbox.Optional[int] {
	var v int
	return unwrapInto(raw, key, &v)
}

func unwrapTime(raw map[string]json.RawMessage, key string) opensandbox.Optional[time.Time] {
	var v time.Time
	return unwrapInto(raw, key, &v)
}

func unwrapInto[T any](raw map[string]json.RawMessage, key string, dst *T) opensandbox.Optional[T] {
	data, present := raw[key]
	if !present {
		return opensandbox.Optional[T]{}
	}
	if string(data) == "null" {
		return opensandbox.Null[T]()
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return opensandbox.Optional[T]{}
	}
	return opensandbox.Some(*dst)
}

// ToCommandStatus converts an execd CommandStatusResponse payload into
// the SDK's CommandStatus, each field independently optional.
func ToCommandStatus(raw map[string]json.RawMessage) opensandbox.CommandStatus {
	return opensandbox.CommandStatus{
		ID:         unwrapString(raw, "id"),
		Content:    unwrapString(raw, "content"),
		Running:    unwrapBool(raw, "running"),
		ExitCode:   unwrapInt(raw, "exit_code"),
		Error:      unwrapString(raw, "error"),
		StartedAt:  unwrapTime(raw, "started_at"),
		FinishedAt: unwrapTime(raw, "finished_at"),
	}
}
