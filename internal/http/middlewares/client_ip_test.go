package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/dropDatabas3/notesauth/internal/http/middlewares"
	"github.com/dropDatabas3/notesauth/internal/rate"
)

func request(remote string, xff ...string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.RemoteAddr = remote
	for _, h := range xff {
		r.Header.Add("X-Forwarded-For", h)
	}
	return r
}

func TestClientIP_Of(t *testing.T) {
	ips, err := mw.NewClientIP([]string{"10.0.0.0/8", " 192.168.1.7 ", ""})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"untrusted peer ignores header", request("203.0.113.5:4000", "1.1.1.1"), "203.0.113.5"},
		{"trusted peer without header", request("10.1.2.3:4000"), "10.1.2.3"},
		{"trusted peer uses last hop", request("10.1.2.3:4000", "1.1.1.1, 198.51.100.9"), "198.51.100.9"},
		{"trusted hops are skipped", request("10.1.2.3:4000", "198.51.100.9, 10.9.9.9", "192.168.1.7"), "198.51.100.9"},
		{"all hops trusted falls back to peer", request("192.168.1.7:80", "10.0.0.1"), "192.168.1.7"},
		{"bare remote addr", request("203.0.113.5"), "203.0.113.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ips.Of(tc.req))
		})
	}
}

func TestClientIP_NilTrustsNobody(t *testing.T) {
	var ips *mw.ClientIP
	assert.Equal(t, "203.0.113.5", ips.Of(request("203.0.113.5:4000", "1.1.1.1")))

	none, err := mw.NewClientIP(nil)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", none.Of(request("10.1.2.3:4000", "1.1.1.1")))
}

func TestNewClientIP_Invalid(t *testing.T) {
	_, err := mw.NewClientIP([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = mw.NewClientIP([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestWithRateLimit_RotatingForwardedForSharesKey(t *testing.T) {
	ips, err := mw.NewClientIP([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	l := rate.NewMemoryLimiter(1, time.Minute)
	t.Cleanup(func() { _ = l.Close() })

	h := mw.WithRateLimit(l, ips)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	serve := func(r *http.Request) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(request("203.0.113.5:1", "1.1.1.1")))
	assert.Equal(t, http.StatusTooManyRequests, serve(request("203.0.113.5:2", "2.2.2.2")))

	// Behind the proxy each forwarded client has its own window.
	assert.Equal(t, http.StatusNoContent, serve(request("10.0.0.1:1", "198.51.100.1")))
	assert.Equal(t, http.StatusNoContent, serve(request("10.0.0.1:2", "198.51.100.2")))
	assert.Equal(t, http.StatusTooManyRequests, serve(request("10.0.0.1:3", "198.51.100.1")))
}
