package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/pryvlink/internal/ports"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(zerolog.New(&buf))

	adapter.Info("chunk sent",
		ports.String("dispatch", "abc"),
		ports.Int("calls", 2),
		ports.Bool("last", true),
		ports.Duration("took", 1500*time.Millisecond),
		ports.Err(errors.New("boom")),
	)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if line["message"] != "chunk sent" || line["level"] != "info" {
		t.Errorf("line = %v", line)
	}
	if line["dispatch"] != "abc" || line["calls"] != float64(2) || line["last"] != true {
		t.Errorf("fields = %v", line)
	}
	if line["error"] != "boom" {
		t.Errorf("error field = %v, want boom", line["error"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
