package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

// Interrupting a one-shot command cancels its context; serve installs its
// own SIGTERM handling on top.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "mkt:", err)
		}
		os.Exit(1)
	}
}
