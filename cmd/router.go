package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/breakerbox/internal/handler"
)

func setupRouter(breakerHandler *handler.BreakerHandler) *http.ServeMux {
	mux := http.NewServeMux()

	breakerHandler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}
