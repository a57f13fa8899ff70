package httpserver

import (
	"net/http"

	"chargepilot/internal/http/handlers"
	"chargepilot/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	ChargeHandlers    *handlers.ChargeHandlers
	PaymentHandlers   *handlers.PaymentHandlers
	AdminHandlers     *handlers.AdminHandlers
	TelemetryHandlers *handlers.TelemetryHandlers
	OCPPHandler       http.HandlerFunc
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})))

	mux.HandleFunc("/ocpp/", deps.OCPPHandler)

	mux.Handle("/api/charge/start/", method(http.MethodGet, http.HandlerFunc(deps.ChargeHandlers.Start)))
	mux.Handle("/api/charge/stop/", method(http.MethodGet, http.HandlerFunc(deps.ChargeHandlers.Stop)))

	mux.Handle("/api/payments/intent", method(http.MethodPost, http.HandlerFunc(deps.PaymentHandlers.CreateIntent)))

	mux.Handle("/api/telemetry/ws", method(http.MethodGet, http.HandlerFunc(deps.TelemetryHandlers.Stream)))

	mux.Handle("/api/admin/login", method(http.MethodPost, http.HandlerFunc(deps.AdminHandlers.Login)))

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	mux.Handle("/api/admin/stations", methodSwitch(map[string]http.Handler{
		http.MethodGet:  authenticated(deps.AdminHandlers.ListStations),
		http.MethodPost: authenticated(deps.AdminHandlers.CreateStation),
	}))
	mux.Handle("/api/admin/transactions", method(http.MethodGet, authenticated(deps.AdminHandlers.ListTransactions)))

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func methodSwitch(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := routes[r.Method]
		if !ok {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
