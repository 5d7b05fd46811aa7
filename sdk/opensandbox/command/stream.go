// Package command implements the SDK-side command streamer (spec.md
// §4.H): it posts a command to a sandbox's execd agent and consumes the
// SSE response into an assembled opensandbox.Execution. Framing rules
// are grounded on
// original_source/sdks/sandbox/python/tests/test_command_service_adapter_streaming.py's
// fixture, line for line.
package command

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/alibaba/OpenSandbox/sdk/opensandbox"
)

type frame struct {
	Type          string          `json:"type"`
	Text          string          `json:"text"`
	Timestamp     float64         `json:"timestamp"`
	Results       json.RawMessage `json:"results"`
	Name          string          `json:"name"`
	Value         string          `json:"value"`
	ExecutionTime float64         `json:"execution_time"`
}

type resultPayload struct {
	Text string `json:"text"`
}

// ConsumeSSE reads data: frames from r and folds them into an
// Execution, returning when the stream ends normally, an
// execution_complete frame is seen, or a read error occurs. Lines not
// starting with "data:" and payloads that fail to parse as JSON are
// silently skipped so a single bad frame cannot abort the stream.
func ConsumeSSE(r io.Reader) (*opensandbox.Execution, error) {
	execution := &opensandbox.Execution{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}

		var f frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			continue
		}

		if done := applyFrame(execution, f); done {
			return execution, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return execution, err
	}
	return execution, nil
}

// applyFrame mutates execution per the frame's type and reports whether
// stream consumption should stop (spec.md §4.H frame table).
func applyFrame(execution *opensandbox.Execution, f frame) bool {
	ts := time.Unix(int64(f.Timestamp), 0).UTC()

	switch f.Type {
	case "init":
		execution.ID = f.Text
	case "stdout":
		execution.Logs.Stdout = append(execution.Logs.Stdout, opensandbox.LogEntry{Text: f.Text, Timestamp: ts})
	case "stderr":
		execution.Logs.Stderr = append(execution.Logs.Stderr, opensandbox.LogEntry{Text: f.Text, Timestamp: ts})
	case "result":
		var result resultPayload
		if err := json.Unmarshal(f.Results, &result); err == nil {
			execution.Result = append(execution.Result, opensandbox.ResultEntry{Text: result.Text})
		}
	case "error":
		execution.Error = &opensandbox.ExecutionError{Name: f.Name, Value: f.Value}
	case "execution_complete":
		execution.ExecutionTime = f.ExecutionTime
		return true
	}
	return false
}
