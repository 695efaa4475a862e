package server

import (
	"io"
	"net/http"
)

// Cache-defeating header values attached to every response.
const (
	CacheControlValue = "no-store, no-cache, must-revalidate, max-age=0"
	PragmaValue       = "no-cache"
	ExpiresValue      = "0"
)

func setNoCacheHeaders(h http.Header) {
	h.Set("Cache-Control", CacheControlValue)
	h.Set("Pragma", PragmaValue)
	h.Set("Expires", ExpiresValue)
}

// noCacheResponseWriter sets the no-cache headers right before the status
// line is committed. Setting them earlier is not enough: ServeContent strips
// Cache-Control from the error responses it writes.
type noCacheResponseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *noCacheResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		setNoCacheHeaders(w.Header())
		// 1xx responses are not final
		if code >= 200 || code == http.StatusSwitchingProtocols {
			w.wroteHeader = true
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *noCacheResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// ReadFrom keeps the sendfile path of the underlying writer.
func (w *noCacheResponseWriter) ReadFrom(r io.Reader) (int64, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		return rf.ReadFrom(r)
	}
	return io.Copy(w.ResponseWriter, r)
}

func (w *noCacheResponseWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *noCacheResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// NoCache wraps next so that every response it produces, errors included,
// tells browsers and proxies not to cache it.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ncw := &noCacheResponseWriter{ResponseWriter: w}
		next.ServeHTTP(ncw, r)
		// Handler wrote nothing: net/http sends an implicit 200 with this header map.
		if !ncw.wroteHeader {
			setNoCacheHeaders(w.Header())
		}
	})
}
