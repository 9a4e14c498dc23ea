package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		xff     string
		cip     string
		remote  string
		trusted bool
		want    string
	}{
		{"xff first hop", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:5555", true, "203.0.113.7"},
		{"client-ip", "", "198.51.100.4", "10.0.0.2:5555", true, "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.10:4242", true, "192.0.2.10"},
		{"untrusted ignores headers", "203.0.113.7", "198.51.100.4", "192.0.2.10:4242", false, "192.0.2.10"},
		{"remote without port", "", "", "192.0.2.10", true, "192.0.2.10"},
		{"nothing", "", "", "", true, UnknownClient},
		{"blank xff", " , 10.0.0.1", "", "192.0.2.10:1", true, "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.cip != "" {
				r.Header.Set("Client-IP", tt.cip)
			}
			assert.Equal(t, tt.want, ClientIP(r, tt.trusted))
		})
	}
}

func TestClientIDStoresInContext(t *testing.T) {
	var got string
	h := ClientID(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientFromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "203.0.113.9", got)

	assert.Equal(t, UnknownClient, ClientFromContext(r.Context()))
}

func TestRequestID(t *testing.T) {
	var logger *zerolog.Logger
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger = zerolog.Ctx(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
	require.NotNil(t, logger)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, "abc", rr.Header().Get("X-Request-ID"))

	r.Header.Set("X-Request-ID", strings.Repeat("x", 500))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error","message":"unexpected error"}`, rr.Body.String())
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/resolve", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/resolve", nil))
	assert.True(t, called)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestThrottle(t *testing.T) {
	h := Throttle(1, 2)(okHandler)
	codes := make([]int, 3)
	for i := range codes {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = rr.Code
		if rr.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rr.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestThrottleDisabled(t *testing.T) {
	h := Throttle(0, 0)(okHandler)
	for i := 0; i < 100; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRequestSizeLimit(t *testing.T) {
	h := RequestSizeLimit(8)(okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoggingCapturesStatus(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "short and stout", rr.Body.String())
}
