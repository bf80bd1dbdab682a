package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

var testTracer = noop.NewTracerProvider().Tracer("test")

type sentCall struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// batchFunc answers one batch request; n is the 0-based request number.
type batchFunc func(n int, calls []sentCall) (string, error)

// fakeTransport implements ports.Transport in memory.
type fakeTransport struct {
	t       *testing.T
	respond batchFunc

	mu       sync.Mutex
	requests [][]sentCall
}

func newFakeTransport(t *testing.T, respond batchFunc) *fakeTransport {
	return &fakeTransport{t: t, respond: respond}
}

func (f *fakeTransport) Do(ctx context.Context, req *ports.Request) (*ports.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Canceled(err)
	}
	if req.Method != http.MethodPost || req.Path != "" {
		f.t.Errorf("request = %s %q, want POST to batch root", req.Method, req.Path)
	}
	if req.ContentType != "application/json" {
		f.t.Errorf("content type = %q", req.ContentType)
	}

	var calls []sentCall
	if err := json.NewDecoder(req.Body).Decode(&calls); err != nil {
		f.t.Fatalf("decode request: %v", err)
	}

	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, calls)
	f.mu.Unlock()

	sent := time.Now()
	body, err := f.respond(n, calls)
	if err != nil {
		return nil, err
	}
	return &ports.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		SentAt:     sent,
		ReceivedAt: time.Now(),
	}, nil
}

func (f *fakeTransport) Requests() [][]sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]sentCall{}, f.requests...)
}

// echoBatch answers each call with {"events": [], "echo": params.i}.
func echoBatch(n int, calls []sentCall) (string, error) {
	parts := make([]string, len(calls))
	for i, c := range calls {
		parts[i] = fmt.Sprintf(`{"events":[],"echo":%v}`, c.Params["i"])
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

func numberedCalls(n int) []domain.Call {
	calls := make([]domain.Call, n)
	for i := range calls {
		calls[i] = domain.Call{Method: "events.get", Params: map[string]any{"i": i}}
	}
	return calls
}

// formatSeconds renders t the way the service does: fractional Unix seconds.
func formatSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/float64(time.Second), 'f', -1, 64)
}
