package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/hypothesis-lab/internal/export"
	"github.com/joseph-ayodele/hypothesis-lab/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP (and optional gRPC) analysis service",
	Long: `Serve exposes POST /generate-hypothesis (multipart field "file"), GET /healthz
and, when the job ledger is enabled, GET /jobs/export.

Set --grpc-addr to also serve hypothesislab.v1.AnalysisService.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("http-addr", "", "HTTP listen address (default :8000)")
	f.String("grpc-addr", "", "gRPC listen address (empty disables gRPC)")
	_ = viper.BindPFlag("server.http_addr", f.Lookup("http-addr"))
	_ = viper.BindPFlag("server.grpc_addr", f.Lookup("grpc-addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		Provider:       a.provider,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Limiter:        server.NewClientLimiter(cfg.Server.RatePerSecond, cfg.Server.RateBurst, 0),
	}
	if a.jobs != nil {
		opts.Export = export.NewService(a.jobs, logger)
		opts.Ledger = a.db
	}

	return server.New(a.processor, opts, logger).Run(ctx, server.Listen{
		HTTPAddr:        cfg.Server.HTTPAddr,
		GRPCAddr:        cfg.Server.GRPCAddr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}
