package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// cartEchoHandler разбирает JSON-запрос добавления в корзину и возвращает
// его же в ответе.
func cartEchoHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"product_id":%q,"quantity":%d}`, req.ProductID, req.Quantity)
}

func gzipBytes(t *testing.T, payload string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	payload := `{"product_id":"kbd-104","quantity":3}`

	tests := []struct {
		name           string
		compressBody   bool
		acceptEncoding string
		wantEncoding   string
	}{
		{
			name:           "compressed cart payload, client accepts gzip",
			compressBody:   true,
			acceptEncoding: "gzip",
			wantEncoding:   "gzip",
		},
		{
			name:           "plain cart payload, client accepts gzip",
			compressBody:   false,
			acceptEncoding: "gzip",
			wantEncoding:   "gzip",
		},
		{
			name:           "client without gzip support",
			compressBody:   false,
			acceptEncoding: "",
			wantEncoding:   "",
		},
		{
			name:           "compressed payload, plain response",
			compressBody:   true,
			acceptEncoding: "",
			wantEncoding:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(payload)
			if tt.compressBody {
				requestBody = gzipBytes(t, payload)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/user/cart", requestBody)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			if tt.compressBody {
				req.Header.Set("Content-Encoding", "gzip")
			}

			w := httptest.NewRecorder()

			h := GzipMiddleware(http.HandlerFunc(cartEchoHandler))
			h.ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding = %q, want %q", ce, tt.wantEncoding)
			}

			reader := io.Reader(res.Body)
			if res.Header.Get("Content-Encoding") == "gzip" {
				zr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer zr.Close()
				reader = zr
			}

			body, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}

			var resp struct {
				ProductID string `json:"product_id"`
				Quantity  int    `json:"quantity"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				t.Fatalf("unmarshal response %q: %v", string(body), err)
			}
			if resp.ProductID != "kbd-104" || resp.Quantity != 3 {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestGzipMiddleware_BrokenCompressedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/user/cart", strings.NewReader("not gzip at all"))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()

	h := GzipMiddleware(http.HandlerFunc(cartEchoHandler))
	h.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
