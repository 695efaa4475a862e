package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func assertNoCacheHeaders(t *testing.T, h http.Header) {
	t.Helper()
	want := map[string]string{
		"Cache-Control": CacheControlValue,
		"Pragma":        PragmaValue,
		"Expires":       ExpiresValue,
	}
	for name, value := range want {
		got := h.Values(name)
		if len(got) != 1 || got[0] != value {
			t.Errorf("%s = %q, want exactly [%q]", name, got, value)
		}
	}
}

func TestNoCache_HandlerBehaviours(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
	}{
		{
			name:     "writes nothing",
			handler:  func(w http.ResponseWriter, r *http.Request) {},
			wantCode: http.StatusOK,
		},
		{
			name: "write without header",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("hello"))
			},
			wantCode: http.StatusOK,
		},
		{
			name: "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			},
			wantCode: http.StatusTeapot,
		},
		{
			name: "http.Error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantCode: http.StatusInternalServerError,
		},
		{
			name: "overrides handler cache headers",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
				w.Header().Add("Pragma", "cache")
				w.Header().Set("Expires", "Thu, 01 Dec 2094 16:00:00 GMT")
				_, _ = w.Write([]byte("x"))
			},
			wantCode: http.StatusOK,
		},
		{
			name: "strips headers after setting them",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Cache-Control", "no-cache")
				w.Header().Del("Cache-Control")
				w.WriteHeader(http.StatusNotFound)
			},
			wantCode: http.StatusNotFound,
		},
		{
			name: "flush before write",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.(http.Flusher).Flush()
				_, _ = w.Write([]byte("streamed"))
			},
			wantCode: http.StatusOK,
		},
		{
			name: "read from",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(w, strings.NewReader("copied"))
			},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			NoCache(tt.handler).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			assertNoCacheHeaders(t, rec.Result().Header)
		})
	}
}

func TestNoCache_InformationalStatusNotFinal(t *testing.T) {
	srv := httptest.NewServer(NoCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusEarlyHints)
		w.Header().Del("Cache-Control")
		w.WriteHeader(http.StatusNoContent)
	})))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	assertNoCacheHeaders(t, resp.Header)
}

func TestNoCache_OverTheWire(t *testing.T) {
	srv := httptest.NewServer(NoCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/missing")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	assertNoCacheHeaders(t, resp.Header)
}

func TestNoCache_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	ncw := &noCacheResponseWriter{ResponseWriter: rec}
	if ncw.Unwrap() != rec {
		t.Error("Unwrap() should return the wrapped writer")
	}
}
