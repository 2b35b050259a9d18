package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mklemme/clpool/lib/config"
	"github.com/mklemme/clpool/lib/executor"
	"github.com/mklemme/clpool/lib/manager"
	ent "github.com/mklemme/clpool/lib/transaction"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "clpool",
		Short:         "Concentrated-liquidity pool simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	root.AddCommand(simulateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a transaction script against a pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			return simulate(cfg)
		},
	}
	// Flag defaults mirror the config defaults; bound flags take precedence
	// over the file only when changed or when the defaults agree.
	cmd.Flags().String("script", "script.json", "transaction script (JSON)")
	cmd.Flags().String("log.level", "info", "log level")
	return cmd
}

func simulate(cfg *config.Config) error {
	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	transactions, err := loadScript(cfg.Script)
	if err != nil {
		return err
	}
	log.Info("script loaded", zap.String("path", cfg.Script), zap.Int("transactions", len(transactions)))

	key := manager.PoolKey{
		Token0:      common.HexToAddress(cfg.Pool.Token0),
		Token1:      common.HexToAddress(cfg.Pool.Token1),
		Fee:         cfg.Pool.Fee,
		TickSpacing: cfg.Pool.TickSpacing,
	}
	if err := key.Validate(); err != nil {
		return err
	}

	mgr := manager.New(log)
	exec := executor.NewExecution(mgr, key, transactions, log)
	summary, err := exec.Run()
	if err != nil {
		return err
	}

	log.Info("simulation finished",
		zap.Int("mints", summary.Mints),
		zap.Int("burns", summary.Burns),
		zap.Int("swaps", summary.Swaps),
		zap.Int("donates", summary.Donates),
		zap.Int("failed", summary.Failed),
		zap.String("volumeIn0", summary.VolumeIn0.Dec()),
		zap.String("volumeIn1", summary.VolumeIn1.Dec()),
	)

	if pool, ok := mgr.Pool(key); ok {
		log.Info("final pool state",
			zap.String("sqrtPriceX96", pool.SqrtPriceX96().Dec()),
			zap.Int("tick", pool.Tick()),
			zap.String("liquidity", pool.Liquidity().Dec()),
			zap.Int("ticksInitialized", pool.TickCount()),
			zap.Int("positions", pool.PositionCount()),
		)
	}
	return nil
}

func loadScript(path string) ([]ent.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inputs []ent.TransactionInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return ent.DecodeScript(inputs)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
