package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metricsHandler http.Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if metricsHandler == nil {
		return
	}

	mux.Handle("GET /metrics", metricsHandler)
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/settlement-sync", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunSettlementSync)))
	mux.Handle("GET /v1/internal/jobs/settlement-sync/last", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.LastSettlementSync)))
}
