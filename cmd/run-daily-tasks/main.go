// run-daily-tasks executes the lifecycle engine once and prints the result.
// Intended for one-off operational runs and as the entry point for batch
// schedulers that prefer a process over the HTTP cron endpoint.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/run-daily-tasks
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/workflow"
)

func main() {
	drainOutbox := flag.Bool("drain-outbox", false, "Also run one outbox dispatch pass after the tasks complete.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	logger := config.GetLogger()
	tasks := workflow.NewDailyTasks(db, logger)
	result, err := tasks.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daily tasks failed: %v\n", err)
		os.Exit(1)
	}

	if *drainOutbox {
		workflow.NewOutboxDispatcher(db, logger).DispatchOnce(ctx)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
