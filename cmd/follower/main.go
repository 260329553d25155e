package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shardfollower/pkg/clock"
	"shardfollower/pkg/config"
	"shardfollower/pkg/utils"

	"shardfollower/internal/cursorloop"
	"shardfollower/internal/cursorstore"
	"shardfollower/internal/follower"
	"shardfollower/internal/httpapi"
	"shardfollower/internal/metrics"
	"shardfollower/internal/shardtx"
)

func main() {
	rootCmd := &cobra.Command{Use: "follower"}
	rootCmd.AddCommand(runCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "follow shard transactions from a gateway and report them on a schedule",
		Run: func(cmd *cobra.Command, args []string) {
			env, _ := cmd.Flags().GetString("env")
			if err := godotenv.Load(); err != nil {
				logrus.WithError(err).Debug("no .env file found, continuing with process environment")
			}

			cfg, err := config.Load(env)
			if err != nil {
				logrus.WithError(err).Fatal("failed to load configuration")
			}

			log := logrus.New()
			if level, parseErr := logrus.ParseLevel(cfg.Logging.Level); parseErr == nil {
				log.SetLevel(level)
			}
			if cfg.Logging.File != "" {
				f, openErr := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if openErr != nil {
					log.WithError(openErr).Fatal("failed to open log file")
				}
				defer f.Close()
				log.SetOutput(f)
				log.SetFormatter(&logrus.JSONFormatter{})
			}

			runFollower(cfg, log)
		},
	}
	cmd.Flags().String("env", "", "environment overlay config name")
	return cmd
}

func runFollower(cfg *config.Config, log *logrus.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	recorder := metrics.New()
	store := cursorstore.NewInMemory()

	f := follower.New(cfg.Gateway.URL, log, clock.Real())

	admin := httpapi.New(log, recorder, httpapi.InspectorFromStore(store))
	if cfg.HTTP.ListenAddr != "" {
		if err := admin.Start(cfg.HTTP.ListenAddr); err != nil {
			log.WithError(err).Fatal("failed to start admin server")
		}
		defer admin.Stop(context.Background())
	}

	// FOLLOWER_POLL_INTERVAL_SECONDS and FOLLOWER_MAX_LOOK_BEHIND let an
	// operator override the config file without editing it, e.g. to widen
	// the look-behind cap temporarily while recovering from an incident.
	pollIntervalSeconds := utils.EnvOrDefaultInt("FOLLOWER_POLL_INTERVAL_SECONDS", int(cfg.Schedule.Interval/time.Second))
	interval := time.Duration(pollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 6 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	maxLookBehind := utils.EnvOrDefaultUint64("FOLLOWER_MAX_LOOK_BEHIND", cfg.Gateway.MaxLookBehind)

	opts := follower.Options{
		RoundDuration: cfg.Gateway.RoundDuration,
		MaxLookBehind: maxLookBehind,
		WaitForFinalizedCrossShardSmartContractResults: cfg.Delivery.WaitForFinalizedCrossShardSmartContractResults,
		NotifyEmptyBlocks:                    cfg.Delivery.NotifyEmptyBlocks,
		IncludeCrossShardStartedTransactions: cfg.Delivery.IncludeCrossShardStartedTransactions,
		CursorStore:                          store,
		Recorder:                             recorder,
		GracePeriod:                          cfg.Reconciler.GracePeriod,
		OnTransactionsReceived:                logTransactions(log),
	}

	log.WithField("gateway", cfg.Gateway.URL).WithField("interval", interval).Info("follower starting")
	for {
		select {
		case <-ctx.Done():
			log.Info("follower shutting down")
			return
		case <-ticker.C:
			if err := f.Run(ctx, opts); err != nil {
				if errors.Is(err, follower.ErrAlreadyRunning) {
					log.Warn("previous sweep still running, skipping this tick")
					continue
				}
				log.WithError(err).Error("sweep failed")
			}
		}
	}
}

// logTransactions is the default consumer: it logs every delivered batch.
// Real deployments supply their own follower.Options.OnTransactionsReceived.
func logTransactions(log *logrus.Logger) cursorloop.ConsumerFunc {
	return func(_ context.Context, shardID uint32, nonce uint64, txs []*shardtx.Transaction, stats cursorloop.Statistics, blockHash string) error {
		log.WithField("shard", shardID).
			WithField("nonce", nonce).
			WithField("block", blockHash).
			WithField("count", len(txs)).
			WithField("noncesLeft", stats.NoncesLeft).
			Info("delivered block")
		return nil
	}
}
