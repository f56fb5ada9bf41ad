package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/99souls/sensorwatch/internal/app"
	"github.com/99souls/sensorwatch/internal/config"
)

func main() {
	var (
		configPath  string
		metricsAddr string
		healthAddr  string
		environment string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config.yaml (falls back to SENSORWATCH_CONFIG, then config.yaml beside the executable, then ./config.yaml)")
	flag.StringVar(&metricsAddr, "metrics", ":9090", "Address to serve /metrics on")
	flag.StringVar(&healthAddr, "health", ":9091", "Address to serve /healthz on")
	flag.StringVar(&environment, "environment", "production", "Deployment environment reported on trace spans")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("sensorwatch - sensor monitoring and alarm engine")
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	application, err := app.New(cfg, "sensorwatch", environment)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("signal received; initiating graceful shutdown...")
		cancel()
		<-sigCh
		log.Println("second signal received; forcing exit")
		os.Exit(1)
	}()

	application.Start(ctx)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", application.MetricsHandler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("metrics listening on %s", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", application.HealthHandler())
	healthSrv := &http.Server{Addr: healthAddr, Handler: healthMux}
	go func() {
		log.Printf("health endpoint listening on %s", healthAddr)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("stopping pipeline...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	_ = healthSrv.Shutdown(shutdownCtx)

	application.Stop()
	log.Println("shutdown complete")
}
