// launchdash serves the SpaceX launch records dashboard.
//
// Usage:
//
//	launchdash [--config launchdash.yaml] [--log-level info]
//	launchdash serve --addr :8050 --dataset spacex_launch_dash.csv
//	launchdash sites --format markdown
//	launchdash import spacex_launch_dash.csv --db launches.db --table launches
//	echo "$PASSWORD" | launchdash hash-password
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
