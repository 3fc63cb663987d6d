package streamwire

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecode_JSONFrames(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Frame
	}{
		{"log", `{"kind":"log","text":"hello"}`, Frame{Kind: FrameLog, Text: "hello"}},
		{"status completed", `{"kind":"status","state":"completed"}`, Frame{Kind: FrameStatus, State: "completed"}},
		{"status failed", `{"kind":"status","state":"failed"}`, Frame{Kind: FrameStatus, State: "failed"}},
		{"gone", `{"kind":"gone"}`, Frame{Kind: FrameGone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecode_StatusSentinel(t *testing.T) {
	got, err := Decode([]byte("__STATUS__completed"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Kind != FrameStatus || got.State != "completed" {
		t.Errorf("Decode() = %+v, want status completed", got)
	}
	if got.Text != "" {
		t.Errorf("sentinel leaked into text: %q", got.Text)
	}
}

func TestDecode_BadSentinelState(t *testing.T) {
	_, err := Decode([]byte("__STATUS__exploded"))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("Decode() error = %v, want ErrMalformedFrame", err)
	}
}

func TestDecode_BadJSONStatusState(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"status","state":"exploded"}`))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("Decode() error = %v, want ErrMalformedFrame", err)
	}
}

func TestDecode_PlainLineIsLog(t *testing.T) {
	got, err := Decode([]byte("Installing package nginx"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Kind != FrameLog || got.Text != "Installing package nginx" {
		t.Errorf("Decode() = %+v, want log frame", got)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := Frame{Kind: FrameStatus, State: "failed"}
	payload, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	out, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestDecodeTerm_Data(t *testing.T) {
	frame, err := DecodeTerm([]byte("ls -la\r"))
	if err != nil {
		t.Fatalf("DecodeTerm() error: %v", err)
	}
	if frame.Resize {
		t.Error("plain data decoded as resize")
	}
	if !bytes.Equal(frame.Data, []byte("ls -la\r")) {
		t.Errorf("data = %q", frame.Data)
	}
}

func TestDecodeTerm_Resize(t *testing.T) {
	frame, err := DecodeTerm(EncodeResize(40, 120))
	if err != nil {
		t.Fatalf("DecodeTerm() error: %v", err)
	}
	if !frame.Resize || frame.Rows != 40 || frame.Cols != 120 {
		t.Errorf("frame = %+v, want resize 40x120", frame)
	}
}

func TestDecodeTerm_BadResize(t *testing.T) {
	payloads := [][]byte{
		{0x01},
		append([]byte{0x01}, []byte("40")...),
		append([]byte{0x01}, []byte("0,120")...),
		append([]byte{0x01}, []byte("a,b")...),
	}
	for _, p := range payloads {
		if _, err := DecodeTerm(p); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("DecodeTerm(%q) error = %v, want ErrMalformedFrame", p, err)
		}
	}
}

func TestDecodeTerm_Empty(t *testing.T) {
	frame, err := DecodeTerm(nil)
	if err != nil {
		t.Fatalf("DecodeTerm() error: %v", err)
	}
	if frame.Resize || len(frame.Data) != 0 {
		t.Errorf("frame = %+v, want empty", frame)
	}
}
