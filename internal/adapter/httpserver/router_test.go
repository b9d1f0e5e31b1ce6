package httpserver

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRouterServesHealthzReadyzMetrics(t *testing.T) {
	r := NewRouter(New(nil))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

func TestChooseAvailablePortReturnsPreferredWhenFree(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())
	preferred, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	got := ChooseAvailablePort(preferred)
	require.Equal(t, preferred, got)
}

func TestChooseAvailablePortFallsBackWhenBound(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	preferred, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	got := ChooseAvailablePort(preferred)
	require.NotEqual(t, preferred, got)
}
