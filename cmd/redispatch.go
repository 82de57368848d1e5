package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanawath/sms-payment-gateway/internal/dispatch"
	"github.com/tanawath/sms-payment-gateway/pkg/logger"
)

var redispatchCmd = &cobra.Command{
	Use:   "redispatch",
	Short: "Re-run delivery for unreviewed unmatched payments",
	Long:  `Work through the unmatched backlog: every unreviewed payment gets one fresh pass over the current website chain`,
	Run: func(cmd *cobra.Command, args []string) {
		runRedispatch()
	},
}

var redispatchLimit int

func runRedispatch() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orm: %v\n", err)
		os.Exit(1)
	}

	core := buildGatewayCore(config, gormDB, log)

	reviewed := false
	backlog, err := core.DispatchRepo.ListUnmatched(&reviewed, 0, redispatchLimit)
	if err != nil {
		log.Error("failed to list unmatched payments", "error", err)
		os.Exit(1)
	}
	if len(backlog) == 0 {
		log.Info("no unreviewed unmatched payments")
		return
	}

	log.Info("redispatching unmatched payments", "count", len(backlog))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received signal, stopping after the current payment", "signal", sig)
		cancel()
	}()

	var matched, unmatched, failed int
	for _, row := range backlog {
		if ctx.Err() != nil {
			break
		}

		result, err := core.Engine.Retry(ctx, row.ID)
		if err != nil {
			failed++
			log.Error("retry failed",
				"unmatched_id", row.ID,
				"payment_id", row.PaymentID,
				"error", err)
			continue
		}

		switch result.Outcome {
		case dispatch.OutcomeMatched:
			matched++
		default:
			unmatched++
		}
		log.Info("retry finished",
			"unmatched_id", row.ID,
			"payment_id", row.PaymentID,
			"outcome", result.Outcome,
			"attempted_sites", len(result.Attempts))
	}

	log.Info("redispatch complete",
		"matched", matched,
		"still_unmatched", unmatched,
		"failed", failed)
}

func init() {
	redispatchCmd.Flags().IntVar(&redispatchLimit, "limit", 100, "Maximum number of payments to retry in one run")
}
