package server

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// =============================================================================
// 1. Logging Interceptor (结构化日志)
// =============================================================================

// UnaryLoggingInterceptor 记录每一次普通请求 (ResolverService)
func UnaryLoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		logRPC(log, "Unary", info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

// StreamLoggingInterceptor 记录流式请求，目前服务没有流式方法，保留给反射/健康检查等
func StreamLoggingInterceptor(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()

		err := handler(srv, ss)

		logRPC(log, "Stream", info.FullMethod, time.Since(start), err)
		return err
	}
}

// logRPC 统一的日志打印逻辑
func logRPC(log *zap.Logger, kind, method string, duration time.Duration, err error) {
	code := status.Code(err)

	level := zapcore.InfoLevel
	if code != codes.OK {
		// NotFound / InvalidArgument 这种业务错误算 Warn，Internal 算 Error
		if code == codes.Internal || code == codes.Unknown {
			level = zapcore.ErrorLevel
		} else {
			level = zapcore.WarnLevel
		}
	}

	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("method", method),
		zap.String("code", code.String()),
		zap.Duration("dur", duration),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	log.Log(level, "gRPC Request", fields...)
}

// =============================================================================
// 2. Recovery Interceptor (防弹衣)
// =============================================================================

// UnaryRecoveryInterceptor 捕获 Panic
func UnaryRecoveryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recoverFromPanic(log, info.FullMethod, r)
			}
		}()
		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor 捕获 Panic
func StreamRecoveryInterceptor(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recoverFromPanic(log, info.FullMethod, r)
			}
		}()
		return handler(srv, ss)
	}
}

func recoverFromPanic(log *zap.Logger, method string, p any) error {
	log.Error("panic recovered",
		zap.String("method", method),
		zap.Any("panic", p),
		zap.ByteString("stack", debug.Stack()),
	)
	// 返回 Internal 给客户端，而不是直接断开连接
	return status.Errorf(codes.Internal, "internal server error: panic recovered")
}
