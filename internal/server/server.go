package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Listen describes where Run serves. An empty GRPCAddr disables gRPC.
type Listen struct {
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration
}

// Run serves HTTP (and gRPC when configured) until ctx is cancelled, then
// drains in-flight requests for up to ShutdownTimeout.
func (s *Server) Run(ctx context.Context, l Listen) error {
	if l.ShutdownTimeout <= 0 {
		l.ShutdownTimeout = 15 * time.Second
	}

	httpLis, err := net.Listen("tcp", l.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server.http.serving", "addr", httpLis.Addr().String())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	if l.GRPCAddr != "" {
		grpcLis, err := net.Listen("tcp", l.GRPCAddr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
		gs := s.NewGRPCServer()
		g.Go(func() error {
			s.logger.Info("server.grpc.serving", "addr", grpcLis.Addr().String())
			if err := gs.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("server.shutdown", "timeout", l.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	s.logger.Info("server.stopped")
	return err
}
