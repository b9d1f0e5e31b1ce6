package httpserver

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts /healthz, /readyz, and /metrics on a chi router. Every
// route is read-only and meant for cluster-internal probes and scrapers, so
// no CORS, rate limiting, or auth middleware is wired here.
func NewRouter(srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Recoverer())
	r.Use(AccessLog())

	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// ChooseAvailablePort returns preferred if it can be bound, otherwise an
// ephemeral free port chosen by the OS.
func ChooseAvailablePort(preferred int) int {
	if portAvailable(preferred) {
		return preferred
	}
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return preferred
	}
	defer ln.Close()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return preferred
	}
	return port
}

func portAvailable(port int) bool {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
