package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/config"
	"github.com/GitRadiation/template-filler/internal/publisher"
	"github.com/GitRadiation/template-filler/internal/repository/postgres"
	"github.com/GitRadiation/template-filler/internal/usecase"
)

// fillerctl is the operator CLI. Currently its only command is retry-failed,
// which re-enqueues recent failed jobs.
//
//	fillerctl retry-failed --limit 10 --hours 24
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "retry-failed":
		if err := runRetryFailed(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fillerctl retry-failed [--limit N] [--hours H]")
}

func runRetryFailed(args []string) error {
	fs := flag.NewFlagSet("retry-failed", flag.ExitOnError)
	limit := fs.Int("limit", 10, "maximum number of failed jobs to retry")
	hours := fs.Int("hours", 24, "only retry jobs that failed within the last H hours")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	if *hours <= 0 {
		return fmt.Errorf("--hours must be positive")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer pub.Close()

	jobRepo := postgres.NewJobRepository(dbPool)
	retryUC := usecase.NewRetryFailedUsecase(jobRepo, pub, logger)

	results, err := retryUC.Execute(ctx, *limit, time.Duration(*hours)*time.Hour)
	if err != nil {
		return err
	}

	retried := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s  FAILED  %v\n", r.JobID, r.Err)
			continue
		}
		fmt.Printf("%s  re-enqueued\n", r.JobID)
		retried++
	}
	fmt.Printf("retried %d of %d job(s)\n", retried, len(results))
	return nil
}
