package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/hb-chen/mkbi/internal/api"
	httpapi "github.com/hb-chen/mkbi/internal/api/http"
	"github.com/hb-chen/mkbi/internal/config"
	"github.com/hb-chen/mkbi/internal/tracer"
	"github.com/hb-chen/mkbi/pkg/grpc/gateway"
	"github.com/hb-chen/mkbi/pkg/logger"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take to drain.
const shutdownTimeout = 10 * time.Second

// Serve starts the HTTP server and, when configured, the gRPC health
// server. It blocks until ctx is done or a server fails, then stops both.
func Serve(ctx context.Context, cfg *config.Config, svc *api.Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := &sync.WaitGroup{}
	errc := make(chan error, 2)
	start := func(run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errc <- err
				cancel()
			}
		}()
	}

	if cfg.Server.GRPC.Addr != "" {
		start(func(ctx context.Context) error {
			return runGRPC(ctx, cfg.Server.GRPC.Addr)
		})
	}
	start(func(ctx context.Context) error {
		lis, err := net.Listen("tcp", cfg.Server.HTTP.Addr())
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
		return runHTTP(ctx, lis, NewHandler(svc, cfg.Server.Token))
	})

	<-ctx.Done()
	logger.Info("Shutting down servers...")
	wg.Wait()
	close(errc)

	return <-errc
}

// runGRPC serves the standard gRPC health service, reported NOT_SERVING
// once shutdown begins.
func runGRPC(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	logger.Infof("gRPC server listening on %s", addr)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		logger.Info("Stopping gRPC server...")
		hs.Shutdown()
		s.GracefulStop()
	}()

	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server failed: %w", err)
	}

	// Serve returns as soon as GracefulStop begins; wait for the drain.
	<-stopped
	return nil
}

// NewHandler builds the HTTP surface: API routes, /metrics and the access
// log. token gates the mutating routes; empty disables auth.
func NewHandler(svc *api.Service, token string) http.Handler {
	gw := gateway.New(
		runtime.WithErrorHandler(httpErrorHandler),
	)

	httpapi.NewHandlers(svc).Register(gw, token)
	gw.Handle(http.MethodGet, "/metrics", promhttp.Handler())
	gw.Use(accessLogMiddleware)

	return gw
}

// runHTTP serves handler on lis until ctx is done. It returns only after
// in-flight requests have drained or shutdownTimeout has elapsed.
func runHTTP(ctx context.Context, lis net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("HTTP server listening on %s", lis.Addr())

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		logger.Info("Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP shutdown: %v", err)
		}
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	// Serve returns as soon as Shutdown closes the listener; wait for the drain.
	<-stopped
	return nil
}

// httpErrorHandler renders router errors (unknown path, wrong method) in
// the same {"detail": ...} shape as the API handlers.
func httpErrorHandler(_ context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, r *http.Request, err error) {
	st := status.Convert(err)
	code := runtime.HTTPStatusFromCode(st.Code())
	logger.Debugf("HTTP error: %v, path: %s", err, r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(httpapi.ErrorResponse{Detail: st.Message()})
}

// accessLogMiddleware logs every request and counts it by method and status.
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		tracer.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Inc()

		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			clientIP = forwarded
		} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			clientIP = realIP
		}

		userAgent := r.UserAgent()
		if userAgent == "" {
			userAgent = "-"
		}

		responseSize := rw.bytesWritten
		if responseSize == 0 {
			responseSize = -1
		}
		logger.Infof("%s - \"%s %s %s\" %d %d \"%s\" %v",
			clientIP,
			r.Method,
			r.URL.Path,
			r.Proto,
			rw.statusCode,
			responseSize,
			userAgent,
			duration,
		)
	})
}

// responseWriter captures status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
