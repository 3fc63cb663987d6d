// Package streamwire defines the framed message formats carried over the
// panel's streaming connections: JSON text frames for task log streams and
// a one-byte-tagged binary framing for interactive terminals. Both the
// gateway and the client decode through this package so the sentinel shim
// lives in exactly one place.
package streamwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type FrameKind string

const (
	FrameLog    FrameKind = "log"
	FrameStatus FrameKind = "status"
	FrameGone   FrameKind = "gone"
)

// StatusSentinelPrefix is the in-band compatibility marker for transports
// that can only carry plain text lines. A payload of the form
// "__STATUS__completed" is a status frame, not a displayable log line.
const StatusSentinelPrefix = "__STATUS__"

// Frame is one unit delivered on a task log stream.
type Frame struct {
	Kind  FrameKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	State string    `json:"state,omitempty"` // "completed" | "failed" for status frames
}

var ErrMalformedFrame = errors.New("streamwire: malformed frame")

// Encode renders the frame as a JSON text payload.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses one inbound text payload into a typed frame. The JSON form
// is tried first; a bare line is treated as a log frame unless it carries
// the status sentinel, which is stripped here and never surfaces as text.
func Decode(payload []byte) (Frame, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var f Frame
		if err := json.Unmarshal(payload, &f); err == nil && f.Kind != "" {
			if f.Kind == FrameStatus && f.State != "completed" && f.State != "failed" {
				return Frame{}, fmt.Errorf("%w: bad status state %q", ErrMalformedFrame, f.State)
			}
			return f, nil
		}
	}
	if state, ok := strings.CutPrefix(trimmed, StatusSentinelPrefix); ok {
		if state != "completed" && state != "failed" {
			return Frame{}, fmt.Errorf("%w: bad sentinel state %q", ErrMalformedFrame, state)
		}
		return Frame{Kind: FrameStatus, State: state}, nil
	}
	return Frame{Kind: FrameLog, Text: string(payload)}, nil
}

// ==================== Terminal framing ====================

// Terminal streams are binary. A frame starting with resizeTag carries a
// requested size as "<rows>,<cols>" UTF-8 text; anything else is raw data.
const resizeTag = 0x01

// TermFrame is one decoded terminal frame.
type TermFrame struct {
	Resize bool
	Rows   int
	Cols   int
	Data   []byte
}

// EncodeResize builds the control frame requesting a terminal size.
func EncodeResize(rows, cols int) []byte {
	return append([]byte{resizeTag}, []byte(fmt.Sprintf("%d,%d", rows, cols))...)
}

// DecodeTerm classifies one inbound binary payload. The tag byte is
// consumed here so callers only ever see a typed value.
func DecodeTerm(payload []byte) (TermFrame, error) {
	if len(payload) == 0 {
		return TermFrame{}, nil
	}
	if payload[0] != resizeTag {
		return TermFrame{Data: payload}, nil
	}
	rows, cols, err := parseSize(string(payload[1:]))
	if err != nil {
		return TermFrame{}, err
	}
	return TermFrame{Resize: true, Rows: rows, Cols: cols}, nil
}

func parseSize(s string) (int, int, error) {
	r, c, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: bad size %q", ErrMalformedFrame, s)
	}
	rows, err := strconv.Atoi(strings.TrimSpace(r))
	if err != nil || rows <= 0 {
		return 0, 0, fmt.Errorf("%w: bad rows %q", ErrMalformedFrame, r)
	}
	cols, err := strconv.Atoi(strings.TrimSpace(c))
	if err != nil || cols <= 0 {
		return 0, 0, fmt.Errorf("%w: bad cols %q", ErrMalformedFrame, c)
	}
	return rows, cols, nil
}
