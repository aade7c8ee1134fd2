package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Rebuild the weekly post and bean rankings once and exit",
	Args:  cobra.NoArgs,
	RunE:  runWarm,
}

func init() {
	RootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Cache.RedisAddr == "" {
		cmd.PrintErrln("cache.redis_addr is not set; rankings built in-process are lost on exit")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	start := time.Now()
	if err := a.ranking.Refresh(ctx); err != nil {
		return err
	}
	a.logger.Info("rankings warmed", zap.Duration("took", time.Since(start)))
	return nil
}
