package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "ai-session-insights-service/internal/api/grpc"
	"ai-session-insights-service/internal/app"
	"ai-session-insights-service/internal/capture"
	"ai-session-insights-service/internal/config"
	apphttp "ai-session-insights-service/internal/http"
	"ai-session-insights-service/internal/observability"
	"ai-session-insights-service/internal/observability/metrics"
	"ai-session-insights-service/internal/service/audio"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var withCapture bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC, HTTP and metrics servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if withCapture {
				cfg.Capture.Enabled = true
			}
			return serve(cfg)
		},
	}
	cmd.Flags().BoolVar(&withCapture, "capture", false, "record from the local microphone")
	return cmd
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	grpcapi.Register(server, a.Manager, a.FrameBytes(), audio.DefaultLimits())

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("Session insights gRPC server started")
		if err := server.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC serve failed")
			stop()
		}
	}()

	deps := apphttp.Deps{Sessions: a.Manager, Hub: a.Hub, Ready: a.Ready}
	if a.Store != nil {
		deps.History = a.Store
	}
	httpServer := &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           apphttp.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Service.HTTPAddr).Msg("HTTP API started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP serve failed")
			stop()
		}
	}()

	obs := observability.NewServer(cfg.Service.MetricsAddr, a.Ready)
	obs.Start()

	if cfg.Capture.Enabled {
		mic := capture.New(capture.Config{
			DeviceIndex:   cfg.Capture.DeviceIndex,
			SampleRate:    cfg.Audio.SampleRateHz,
			FrameDuration: cfg.Audio.FrameDuration,
		}, a.Manager)
		go func() {
			if err := mic.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Microphone capture failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("Shutting down servers")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Close the session first so its final events reach connected clients.
	a.Shutdown(shutdownCtx)
	server.GracefulStop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown failed")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Observability shutdown failed")
	}
	return nil
}
