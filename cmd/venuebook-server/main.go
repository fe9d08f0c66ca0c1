package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"venuebook/internal/bootstrap"
	"venuebook/internal/config"
	"venuebook/internal/events"
	"venuebook/internal/metrics"
	"venuebook/internal/service/bookings"
	"venuebook/internal/sweeper"
	grpcTransport "venuebook/internal/transport/grpc"
)

const serviceName = "venuebook-server"

func main() {
	configFile := flag.String("config", "", "path to a config file (yaml, toml or json)")
	flag.Parse()

	log := bootstrap.NewLogger(os.Stdout, "info", serviceName)
	slog.SetDefault(log)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = bootstrap.NewLogger(os.Stdout, cfg.LogLevel, serviceName)
	slog.SetDefault(log)

	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("timezone", cfg.Location.String()),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		args := append([]any{slog.Any("err", err)}, bootstrap.DatabaseLogArgs(cfg.DatabaseURL)...)
		log.Error("store open failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("store close failed", slog.Any("err", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		log.Error("metrics registration failed", slog.Any("err", err))
		os.Exit(1)
	}

	opts := append(bootstrap.ServiceOptions(cfg, log), bookings.WithMetrics(rec))
	if cfg.AMQPURL != "" {
		pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Error("rabbitmq connection failed", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn("rabbitmq close failed", slog.Any("err", err))
			}
		}()
		opts = append(opts, bookings.WithPublisher(pub))
		log.Info("publishing booking events", slog.String("exchange", cfg.AMQPExchange))
	}
	svc := bookings.NewService(st, opts...)

	var sw *sweeper.Sweeper
	if cfg.SweepSchedule != "" {
		sw, err = sweeper.New(cfg.SweepSchedule, svc, log, cfg.SweepTimeout)
		if err != nil {
			log.Error("sweeper setup failed", slog.Any("err", err))
			os.Exit(1)
		}
		sw.Start()
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped with error", slog.Any("err", err))
			}
		}()
		log.Info("metrics server started", slog.String("metrics_addr", cfg.MetricsAddr))
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterBookingServiceServer(grpcServer, grpcTransport.NewBookingsServer(svc, log))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcTransport.BookingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()

	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr))

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc server stopped with error", slog.Any("err", err))
			exitCode = 1
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if sw != nil {
		sw.Stop(stopCtx)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			log.Warn("metrics server shutdown failed", slog.Any("err", err))
		}
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
