// Package exectrace records the ordered, causally-labeled steps of one
// logical task run: who asked whom for what, and what came back.
package exectrace

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Kind classifies a recorded step.
type Kind string

const (
	KindRunStart          Kind = "run-start"
	KindToolCallIssued    Kind = "tool-call-issued"
	KindToolCallCompleted Kind = "tool-call-completed"
	KindInfo              Kind = "info"
	KindRunEnd            Kind = "run-end"
	KindError             Kind = "error"
)

// Step is one entry of an execution trace.
type Step struct {
	ID         int                    `json:"id"`
	Kind       Kind                   `json:"kind"`
	Timestamp  time.Time              `json:"timestamp"`
	Actor      string                 `json:"actor"`
	Target     string                 `json:"target"`
	Content    string                 `json:"content"`
	DurationMS *int64                 `json:"durationMs,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Duration returns the recorded duration and whether one was set.
func (s Step) Duration() (time.Duration, bool) {
	if s.DurationMS == nil {
		return 0, false
	}
	return time.Duration(*s.DurationMS) * time.Millisecond, true
}

func (s Step) clone() Step {
	out := s
	if s.DurationMS != nil {
		ms := *s.DurationMS
		out.DurationMS = &ms
	}
	if s.Metadata != nil {
		out.Metadata = cloneValue(s.Metadata).(map[string]interface{})
	}
	return out
}

// cloneValue deep-copies the generic JSON-like shapes stored in metadata,
// plus the common concrete string maps and slices. Other values are shared.
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(t))
		for i, val := range t {
			out[i], _ = cloneValue(val).(map[string]interface{})
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return slices.Clone(t)
	case json.RawMessage:
		return slices.Clone(t)
	case []byte:
		return slices.Clone(t)
	default:
		return v
	}
}
