package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	logAdapter "github.com/bft-labs/pryvlink/internal/adapters/log"
	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/internal/ports"
)

func newTestTransport(t *testing.T, serverURL string, opts Options) *Transport {
	t.Helper()
	base, err := url.Parse(serverURL + "/user/")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return NewTransport(http.DefaultClient, logAdapter.NewNoopLogger(), base, "tok123", opts)
}

func readAll(t *testing.T, resp *ports.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestTransport_Do_HeadersAndURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/events" {
			t.Errorf("Path = %v, want /user/events", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %v, want 1", r.URL.Query().Get("limit"))
		}
		if r.Header.Get("Authorization") != "tok123" {
			t.Errorf("Authorization = %v, want tok123", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %v", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{"events":[]}`))
	}))
	defer ts.Close()

	tr := newTestTransport(t, ts.URL, Options{Streaming: true})
	resp, err := tr.Do(context.Background(), &ports.Request{
		Method: http.MethodGet,
		Path:   "events",
		Query:  url.Values{"limit": {"1"}},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := readAll(t, resp); got != `{"events":[]}` {
		t.Errorf("body = %s", got)
	}
	if resp.ReceivedAt.Before(resp.SentAt) {
		t.Errorf("ReceivedAt %v before SentAt %v", resp.ReceivedAt, resp.SentAt)
	}
}

func TestTransport_Do_Gzip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("Accept-Encoding = %v, want gzip", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte(`{"ok":true}`))
		zw.Close()
	}))
	defer ts.Close()

	for _, streaming := range []bool{true, false} {
		tr := newTestTransport(t, ts.URL, Options{Streaming: streaming, Gzip: true})
		resp, err := tr.Do(context.Background(), &ports.Request{Method: http.MethodGet, Path: "x"})
		if err != nil {
			t.Fatalf("streaming=%v: Do: %v", streaming, err)
		}
		if got := readAll(t, resp); got != `{"ok":true}` {
			t.Errorf("streaming=%v: body = %q", streaming, got)
		}
	}
}

func TestTransport_Do_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"id":"invalid-access-token","message":"Cannot find access"}}`))
	}))
	defer ts.Close()

	tr := newTestTransport(t, ts.URL, Options{MaxRetries: 3, RetryInitial: time.Millisecond})
	_, err := tr.Do(context.Background(), &ports.Request{Method: http.MethodGet, Path: "events"})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T, want *TransportError", err)
	}
	if te.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", te.StatusCode)
	}
	if te.API == nil || te.API.ID != "invalid-access-token" {
		t.Errorf("API = %+v", te.API)
	}
}

func TestTransport_Do_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `[1]` {
			t.Errorf("attempt body = %q, want replayed [1]", body)
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	tr := newTestTransport(t, ts.URL, Options{MaxRetries: 2, RetryInitial: time.Millisecond, RetryMax: 2 * time.Millisecond})
	resp, err := tr.Do(context.Background(), &ports.Request{Method: http.MethodPost, Body: strings.NewReader(`[1]`)})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestTransport_Do_NoRetryByDefault(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	tr := newTestTransport(t, ts.URL, Options{})
	if _, err := tr.Do(context.Background(), &ports.Request{Method: http.MethodGet}); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestTransport_Do_Canceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	tr := newTestTransport(t, ts.URL, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := tr.Do(ctx, &ports.Request{Method: http.MethodGet})
	if !errors.Is(err, domain.ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrCanceled wrapping context.Canceled", err)
	}
}

func TestTransport_SetEndpoint(t *testing.T) {
	var gotAuth atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization") + " " + r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	tr := newTestTransport(t, ts.URL, Options{})
	other, _ := url.Parse(ts.URL + "/other")
	tr.SetEndpoint(other, "tok456")

	resp, err := tr.Do(context.Background(), &ports.Request{Method: http.MethodGet, Path: "access-info"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got := gotAuth.Load(); got != "tok456 /other/access-info" {
		t.Errorf("request = %v", got)
	}

	base, token := tr.Endpoint()
	if base.String() != ts.URL+"/other/" || token != "tok456" {
		t.Errorf("Endpoint() = %v, %v", base, token)
	}
}
