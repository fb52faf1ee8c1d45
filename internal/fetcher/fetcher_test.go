package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mockTransport struct {
	mu         sync.Mutex
	body       string
	statusCode int
	err        error
	requests   []*http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func TestPageURL(t *testing.T) {
	f := New(&mockTransport{}, Config{BaseURL: "https://www.otodom.pl/"})

	got := f.PageURL("mieszkanie", "wynajem", 3)
	want := "https://www.otodom.pl/pl/wyniki/wynajem/mieszkanie/cala-polska?page=3&viewType=listing"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PageURL mismatch (-want +got):\n%s", diff)
	}
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name       string
		transport  *mockTransport
		wantBody   string
		wantKind   Kind
		wantStatus int
	}{
		{
			name:      "successful fetch",
			transport: &mockTransport{body: "<html>ok</html>", statusCode: 200},
			wantBody:  "<html>ok</html>",
		},
		{
			name:       "not found is permanent",
			transport:  &mockTransport{body: "not found", statusCode: 404},
			wantKind:   Permanent,
			wantStatus: 404,
		},
		{
			name:       "forbidden is permanent",
			transport:  &mockTransport{statusCode: 403},
			wantKind:   Permanent,
			wantStatus: 403,
		},
		{
			name:       "too many requests is transient",
			transport:  &mockTransport{statusCode: 429},
			wantKind:   Transient,
			wantStatus: 429,
		},
		{
			name:       "server error is transient",
			transport:  &mockTransport{statusCode: 503},
			wantKind:   Transient,
			wantStatus: 503,
		},
		{
			name:      "network error is transient",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantKind:  Transient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.transport, Config{BaseURL: "https://example.com"})
			body, err := f.Fetch(context.Background(), "dom", "sprzedaz", 1)

			if tt.wantKind == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if diff := cmp.Diff(tt.wantBody, body); diff != "" {
					t.Errorf("body mismatch (-want +got):\n%s", diff)
				}
				return
			}

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %v", err)
			}
			if diff := cmp.Diff(tt.wantKind, fe.Kind); diff != "" {
				t.Errorf("kind mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantStatus, fe.StatusCode); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantKind == Transient, IsTransient(err)); diff != "" {
				t.Errorf("IsTransient mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantKind == Permanent, IsPermanent(err)); diff != "" {
				t.Errorf("IsPermanent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchSetsBrowserUserAgent(t *testing.T) {
	tr := &mockTransport{statusCode: 200}
	f := New(tr, Config{BaseURL: "https://example.com"})

	if _, err := f.Fetch(context.Background(), "dom", "wynajem", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(tr.requests))
	}
	req := tr.requests[0]
	if diff := cmp.Diff(DefaultUserAgent, req.Header.Get("User-Agent")); diff != "" {
		t.Errorf("user agent mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("2", req.URL.Query().Get("page")); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchCancelledBeforeLimiter(t *testing.T) {
	tr := &mockTransport{statusCode: 200}
	f := New(tr, Config{BaseURL: "https://example.com", Rate: 0.001})

	// First call consumes the single burst token.
	if _, err := f.Fetch(context.Background(), "dom", "wynajem", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, "dom", "wynajem", 2)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if len(tr.requests) != 1 {
		t.Errorf("expected no request after cancellation, got %d total", len(tr.requests))
	}
}
