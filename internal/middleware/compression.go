package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

var (
	gzipPool = sync.Pool{New: func() any { return gzip.NewWriter(io.Discard) }}
	// level 5 keeps brotli close to gzip's CPU cost for JSON-sized payloads
	brotliPool = sync.Pool{New: func() any { return brotli.NewWriterLevel(io.Discard, 5) }}
)

type encoder interface {
	io.WriteCloser
	Flush() error
	Reset(w io.Writer)
}

// compressWriter picks the encoder lazily so that handlers which never write
// (or answer 204/304) do not get a Content-Encoding header.
type compressWriter struct {
	http.ResponseWriter
	encoding    string
	enc         encoder
	wroteHeader bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if status != http.StatusNoContent && status != http.StatusNotModified && w.Header().Get("Content-Encoding") == "" {
		w.Header().Set("Content-Encoding", w.encoding)
		w.Header().Del("Content-Length")
		w.enc = acquire(w.encoding)
		w.enc.Reset(w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.enc == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.enc.Write(b)
}

func (w *compressWriter) Flush() {
	if w.enc != nil {
		w.enc.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) close() {
	if w.enc == nil {
		return
	}
	w.enc.Close()
	release(w.encoding, w.enc)
	w.enc = nil
}

func acquire(encoding string) encoder {
	if encoding == "br" {
		return brotliPool.Get().(*brotli.Writer)
	}
	return gzipPool.Get().(*gzip.Writer)
}

func release(encoding string, e encoder) {
	e.Reset(io.Discard)
	if encoding == "br" {
		brotliPool.Put(e)
	} else {
		gzipPool.Put(e)
	}
}

// negotiateEncoding returns "br", "gzip" or "" for an Accept-Encoding value.
// Brotli wins ties; q=0 excludes a coding.
func negotiateEncoding(accept string) string {
	best, bestQ := "", 0.0
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "br" && name != "gzip" {
			continue
		}
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		if q <= 0 {
			continue
		}
		if q > bestQ || (q == bestQ && name == "br") {
			best, bestQ = name, q
		}
	}
	return best
}

// Compress encodes responses with brotli or gzip, as the client accepts.
// WebSocket upgrades are left alone.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" {
			next.ServeHTTP(w, r)
			return
		}
		cw := &compressWriter{ResponseWriter: w, encoding: encoding}
		defer cw.close()
		next.ServeHTTP(cw, r)
	})
}
