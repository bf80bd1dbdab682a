package app

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/pryvlink/internal/domain"
)

func newTestDispatcher(tr *fakeTransport) *Dispatcher {
	return NewDispatcher(tr, mockLogger{}, nil, testTracer)
}

func TestDispatch_OrderIndependentOfChunkSize(t *testing.T) {
	const total = 7
	var baseline []domain.Result

	for _, size := range []int{1, 2, 3, total, 100, 0} {
		tr := newFakeTransport(t, echoBatch)
		results, err := newTestDispatcher(tr).Dispatch(context.Background(), numberedCalls(total), size, nil)
		if err != nil {
			t.Fatalf("chunk size %d: Dispatch: %v", size, err)
		}
		if len(results) != total {
			t.Fatalf("chunk size %d: got %d results, want %d", size, len(results), total)
		}
		for i, res := range results {
			if res["echo"] != float64(i) {
				t.Errorf("chunk size %d: result %d echo = %v", size, i, res["echo"])
			}
		}
		if baseline == nil {
			baseline = results
		} else if !reflect.DeepEqual(baseline, results) {
			t.Errorf("chunk size %d: results differ from chunk size 1", size)
		}
	}
}

func TestDispatch_ChunkBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		calls     int
		chunkSize int
		wantSizes []int
	}{
		{"3 calls by 2", 3, 2, []int{2, 1}},
		{"4 calls by 2", 4, 2, []int{2, 2}},
		{"3 calls by 3", 3, 3, []int{3}},
		{"size above total", 3, 10, []int{3}},
		{"one by one", 3, 1, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newFakeTransport(t, echoBatch)
			if _, err := newTestDispatcher(tr).Dispatch(context.Background(), numberedCalls(tt.calls), tt.chunkSize, nil); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			var sizes []int
			next := 0
			for _, req := range tr.Requests() {
				sizes = append(sizes, len(req))
				for _, c := range req {
					if c.Params["i"] != float64(next) {
						t.Errorf("call %v sent out of order, want %d", c.Params["i"], next)
					}
					next++
				}
			}
			if !reflect.DeepEqual(sizes, tt.wantSizes) {
				t.Errorf("chunk sizes = %v, want %v", sizes, tt.wantSizes)
			}
		})
	}
}

func TestDispatch_Progress(t *testing.T) {
	tests := []struct {
		calls     int
		chunkSize int
		want      []int
	}{
		{3, 2, []int{67, 100}},
		{3, 3, []int{100}},
		{3, 1, []int{33, 67, 100}},
		{8, 1, []int{13, 25, 38, 50, 63, 75, 88, 100}},
	}

	for _, tt := range tests {
		tr := newFakeTransport(t, echoBatch)
		var got []int
		_, err := newTestDispatcher(tr).Dispatch(context.Background(), numberedCalls(tt.calls), tt.chunkSize, func(p int) {
			got = append(got, p)
		})
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%d calls by %d: progress = %v, want %v", tt.calls, tt.chunkSize, got, tt.want)
		}
	}
}

func TestProgress_Bounds(t *testing.T) {
	if got := Progress(1, 1000); got != 1 {
		t.Errorf("Progress(1, 1000) = %d, want 1", got)
	}
	if got := Progress(999, 1000); got != 99 {
		t.Errorf("Progress(999, 1000) = %d, want 99", got)
	}
	if got := Progress(1000, 1000); got != 100 {
		t.Errorf("Progress(1000, 1000) = %d, want 100", got)
	}
}

func TestDispatch_EmptyCalls(t *testing.T) {
	tr := newFakeTransport(t, echoBatch)
	progressCalled := false
	results, err := newTestDispatcher(tr).Dispatch(context.Background(), nil, 2, func(int) { progressCalled = true })
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %v, want empty non-nil slice", results)
	}
	if len(tr.Requests()) != 0 {
		t.Errorf("transport called %d times, want 0", len(tr.Requests()))
	}
	if progressCalled {
		t.Error("progress called for empty dispatch")
	}
}

func TestDispatch_HandlersRunInOrder(t *testing.T) {
	tr := newFakeTransport(t, echoBatch)

	var mu sync.Mutex
	var order []int
	calls := numberedCalls(5)
	for i := range calls {
		calls[i].HandleResult = func(ctx context.Context, res domain.Result) error {
			if !res.Has("events") {
				t.Errorf("handler got result without events: %v", res)
			}
			// Asynchronous work: the handler waits for it before returning.
			done := make(chan struct{})
			go func() {
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				order = append(order, int(res["echo"].(float64)))
				mu.Unlock()
				close(done)
			}()
			<-done
			return nil
		}
	}

	results, err := newTestDispatcher(tr).Dispatch(context.Background(), calls, 2, nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(results) {
		t.Fatalf("handlers ran %d times, want %d", len(order), len(results))
	}
	if !reflect.DeepEqual(order, []int{0, 1, 2, 3, 4}) {
		t.Errorf("handler order = %v", order)
	}
}

func TestDispatch_HandlersBeforeProgress(t *testing.T) {
	tr := newFakeTransport(t, echoBatch)
	var events []string
	calls := numberedCalls(3)
	for i := range calls {
		calls[i].HandleResult = func(ctx context.Context, res domain.Result) error {
			events = append(events, "handler")
			return nil
		}
	}

	_, err := newTestDispatcher(tr).Dispatch(context.Background(), calls, 2, func(p int) {
		events = append(events, "progress")
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want := []string{"handler", "handler", "progress", "handler", "progress"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestDispatch_TransportFailureMidway(t *testing.T) {
	tr := newFakeTransport(t, func(n int, calls []sentCall) (string, error) {
		if n == 1 {
			return "", &domain.TransportError{ChunkStart: -1, StatusCode: 502}
		}
		return echoBatch(n, calls)
	})

	var progress []int
	results, err := newTestDispatcher(tr).Dispatch(context.Background(), numberedCalls(5), 2, func(p int) {
		progress = append(progress, p)
	})
	if results != nil {
		t.Errorf("results = %v, want nil on failure", results)
	}
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	var te *domain.TransportError
	if !errors.As(err, &te) || te.ChunkStart != 2 {
		t.Errorf("err = %#v, want ChunkStart 2", err)
	}
	if len(tr.Requests()) != 2 {
		t.Errorf("requests = %d, want 2 (no retry, no further chunks)", len(tr.Requests()))
	}
	if !reflect.DeepEqual(progress, []int{40}) {
		t.Errorf("progress = %v, want [40]", progress)
	}
}

func TestDispatch_ResultCountMismatch(t *testing.T) {
	tr := newFakeTransport(t, func(n int, calls []sentCall) (string, error) {
		return `[{"events":[]}]`, nil
	})

	results, err := newTestDispatcher(tr).Dispatch(context.Background(), numberedCalls(2), 2, nil)
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
	if !errors.Is(err, domain.ErrProtocolViolation) {
		t.Errorf("err = %v, want ErrProtocolViolation", err)
	}
}

func TestDispatch_MalformedBody(t *testing.T) {
	for _, body := range []string{`not json`, `"string"`, `{"meta":{}}`} {
		tr := newFakeTransport(t, func(n int, calls []sentCall) (string, error) { return body, nil })
		_, err := newTestDispatcher(tr).Dispatch(context.Background(), numberedCalls(1), 1, nil)
		if !errors.Is(err, domain.ErrProtocolViolation) {
			t.Errorf("body %q: err = %v, want ErrProtocolViolation", body, err)
		}
	}
}

func TestDispatch_EnvelopeError(t *testing.T) {
	tr := newFakeTransport(t, func(n int, calls []sentCall) (string, error) {
		if n == 1 {
			return `{"error":{"id":"invalid-access-token","message":"Cannot find access"}}`, nil
		}
		return echoBatch(n, calls)
	})
	_, err := newTestDispatcher(tr).Dispatch(context.Background(), numberedCalls(4), 2, nil)

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.ID != "invalid-access-token" {
		t.Fatalf("err = %v, want APIError invalid-access-token", err)
	}
	var te *domain.TransportError
	if !errors.As(err, &te) || te.ChunkStart != 2 || te.StatusCode != http.StatusOK {
		t.Errorf("err = %#v, want TransportError at chunk 2 with status 200", err)
	}
	if errors.Is(err, domain.ErrProtocolViolation) {
		t.Errorf("err = %v, must not be a protocol violation", err)
	}
}

func TestDispatch_HandlerError(t *testing.T) {
	tr := newFakeTransport(t, echoBatch)
	boom := errors.New("boom")
	calls := numberedCalls(4)
	calls[2].Method = "streams.get"
	calls[2].HandleResult = func(ctx context.Context, res domain.Result) error { return boom }
	laterRan := false
	calls[3].HandleResult = func(ctx context.Context, res domain.Result) error { laterRan = true; return nil }

	results, err := newTestDispatcher(tr).Dispatch(context.Background(), calls, 10, nil)
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
	var he *domain.HandlerError
	if !errors.As(err, &he) {
		t.Fatalf("err = %v, want *HandlerError", err)
	}
	if he.Index != 2 || he.Method != "streams.get" || !errors.Is(err, boom) {
		t.Errorf("HandlerError = %+v", he)
	}
	if laterRan {
		t.Error("handler after the failing one should not run")
	}
}

func TestDispatch_PerCallErrorIsAResult(t *testing.T) {
	tr := newFakeTransport(t, func(n int, calls []sentCall) (string, error) {
		return `[{"events":[]},{"error":{"id":"unknown-resource","message":"nope"}},{"events":[]}]`, nil
	})

	results, err := newTestDispatcher(tr).Dispatch(context.Background(), numberedCalls(3), 3, nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if results[0].Err() != nil || results[2].Err() != nil {
		t.Error("successful results should carry no error")
	}
	if e := results[1].Err(); e == nil || e.ID != "unknown-resource" {
		t.Errorf("results[1].Err() = %v", e)
	}
}

func TestDispatch_CanceledBetweenChunks(t *testing.T) {
	tr := newFakeTransport(t, echoBatch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := numberedCalls(4)
	calls[1].HandleResult = func(context.Context, domain.Result) error {
		cancel()
		return nil
	}

	results, err := newTestDispatcher(tr).Dispatch(ctx, calls, 2, nil)
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
	if !errors.Is(err, domain.ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want cancellation", err)
	}
	if len(tr.Requests()) != 1 {
		t.Errorf("requests = %d, want 1", len(tr.Requests()))
	}
}

func TestDispatch_EnvelopeUpdatesClockSkew(t *testing.T) {
	server := time.Now().Add(90 * time.Second)
	tr := newFakeTransport(t, func(n int, calls []sentCall) (string, error) {
		return `{"results":[{"events":[]}],"meta":{"apiVersion":"1.9.0","serverTime":` +
			formatSeconds(server) + `}}`, nil
	})
	skew := &ClockSkew{}
	d := NewDispatcher(tr, mockLogger{}, skew, testTracer)

	if _, err := d.Dispatch(context.Background(), numberedCalls(1), 1, nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got := skew.Current()
	if got < 89*time.Second || got > 91*time.Second {
		t.Errorf("skew = %v, want about 90s", got)
	}
}

func TestDispatch_StripsHandlerFromWire(t *testing.T) {
	tr := newFakeTransport(t, echoBatch)
	calls := []domain.Call{{
		Method:       "events.create",
		Params:       map[string]any{"i": 0, "streamId": "data"},
		HandleResult: func(context.Context, domain.Result) error { return nil },
	}}
	if _, err := newTestDispatcher(tr).Dispatch(context.Background(), calls, 1, nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	sent := tr.Requests()[0][0]
	if sent.Method != "events.create" || sent.Params["streamId"] != "data" || len(sent.Params) != 2 {
		t.Errorf("sent = %+v", sent)
	}
}
