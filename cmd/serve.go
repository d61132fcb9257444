package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hb-chen/mkbi/internal/config"
	"github.com/hb-chen/mkbi/internal/server"
	"github.com/hb-chen/mkbi/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mkbi HTTP service",
	Long: `Start the HTTP API and, when server.grpc.addr is set, the gRPC health
service. SIGINT or SIGTERM shuts both down gracefully.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		svc, err := initService(cfg)
		if err != nil {
			return err
		}
		logger.Infof("Serving %d skills (default %s, model %s)",
			len(svc.ListSkills()), svc.DefaultSkill(), cfg.LLM.Model)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.Serve(ctx, cfg, svc)
	},
}

func init() {
	serveCmd.Flags().String("host", "", "HTTP bind host (env MKBI_HOST, default 0.0.0.0)")
	serveCmd.Flags().Int("port", 0, "HTTP bind port (env MKBI_PORT, default 8000)")
	serveCmd.Flags().String("addr-grpc", "", "gRPC health server address; empty disables it")

	rootCmd.AddCommand(serveCmd)
}
