package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/TimurManjosov/goflagship-sdk/internal/config"
	"github.com/TimurManjosov/goflagship-sdk/internal/mockserver"
	"github.com/TimurManjosov/goflagship-sdk/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	flags, err := mockserver.LoadFlags(cfg.MockFlagsFile)
	if err != nil {
		log.Fatalf("flags: %v", err)
	}
	log.Printf("serving %d flags from %s", len(flags), cfg.MockFlagsFile)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []mockserver.Option{
		mockserver.WithMetrics(telemetry.NewHTTPMetrics(reg)),
		mockserver.WithRateLimit(cfg.MockRateLimit),
	}
	if cfg.ClientSecret != "" {
		opts = append(opts, mockserver.WithSecret(cfg.ClientSecret))
	}
	mock := mockserver.New(flags, opts...)

	mux := http.NewServeMux()
	mux.Handle("/", mock.Router())

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler(reg))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux, ReadTimeout: 3 * time.Second}
		go func() {
			log.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("metrics server: %v", err)
			}
		}()
	} else {
		mux.Handle("/metrics", telemetry.Handler(reg))
	}

	srv := &http.Server{
		Addr:         cfg.MockHTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("listening on %s", cfg.MockHTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	// SIGHUP reloads the flags file; SIGINT/SIGTERM shut down
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for sig := range sigs {
		if sig != syscall.SIGHUP {
			break
		}
		flags, err := mockserver.LoadFlags(cfg.MockFlagsFile)
		if err != nil {
			log.Printf("reload failed, keeping previous flags: %v", err)
			continue
		}
		mock.SetFlags(flags)
		log.Printf("reloaded %d flags", len(flags))
	}

	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(ctxShut)
	}
	log.Println("stopped")
}
