package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mrefrpc "mediaref/pkg/api/mrefrpc/v1"
	"mediaref/pkg/app"
	"mediaref/pkg/config"
	"mediaref/pkg/httpapi"
	"mediaref/pkg/logger"
	"mediaref/pkg/server"
	"mediaref/pkg/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is $HOME/.mref/config.yaml)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(viper.GetString("log.level"), viper.GetString("log.file"))
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Init Core Application
	application, err := app.NewApp(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()
	log.Info("mediaref core initialized", zap.String("storage", viper.GetString("storage.type")))

	// 3. gRPC Server
	grpcAddr := viper.GetString("server.grpc_addr")
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			server.UnaryRecoveryInterceptor(log),
			server.UnaryLoggingInterceptor(log.Named("grpc")),
		),
		grpc.ChainStreamInterceptor(
			server.StreamRecoveryInterceptor(log),
			server.StreamLoggingInterceptor(log.Named("grpc")),
		),
	)
	mrefrpc.RegisterResolverServiceServer(grpcServer, service.NewResolverService(application.Media))
	// Enable Reflection for debugging tools (grpcurl)
	reflection.Register(grpcServer)

	// 4. HTTP Server
	gin.SetMode(gin.ReleaseMode)
	opts := httpapi.Options{
		Resolver: application.Media,
		Gatherer: application.Registry,
		Logger:   log.Named("http"),
	}
	// 只有磁盘后端需要由我们自己提供对象下载
	if application.Disk != nil {
		opts.Objects = application.Disk
	}
	httpServer := &http.Server{
		Addr:              viper.GetString("server.http_addr"),
		Handler:           httpapi.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Start Servers (Async)
	errCh := make(chan error, 2)
	go func() {
		log.Info("gRPC server listening", zap.String("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	// 6. Graceful Shutdown
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	return serveErr
}
