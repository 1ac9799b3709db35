package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume the reply queue: generate replies and post them",
		Long: `Consume the reply queue: generate replies and post them.

The worker only makes sense with a shared queue (QUEUE_DRIVER=redis); with the
in-memory queue use "run" to serve and consume in one process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.Queue.Driver == "memory" {
				a.logger.Warn("worker_on_memory_queue", "hint", "nothing will be enqueued by other processes")
			}

			g, gctx := errgroup.WithContext(ctx)
			a.startWorker(gctx, g)
			return g.Wait()
		},
	}
}
