// Package supervisor owns process lifetime: it starts the Consumer,
// listens for OS signals, and drives graceful shutdown per spec.md §4.7.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// Runnable is the subset of Consumer the Supervisor depends on, kept
// narrow so tests can substitute a fake consumer.
type Runnable interface {
	Start(ctx context.Context) error
	Stop()
}

// Supervisor starts a Runnable and reacts to SIGINT/SIGTERM with a
// graceful shutdown. Run blocks until the process should exit and
// returns the process exit code.
type Supervisor struct {
	consumer Runnable
	log      zerolog.Logger
}

func New(consumer Runnable, log zerolog.Logger) *Supervisor {
	return &Supervisor{consumer: consumer, log: log}
}

// Run starts the consumer and blocks until ctx is canceled or a
// termination signal is received, then shuts down gracefully. It
// returns 0 on clean shutdown and a non-zero code if Start failed.
func (s *Supervisor) Run(ctx context.Context) int {
	if err := s.consumer.Start(ctx); err != nil {
		s.log.Error().Err(err).Msg("supervisor: consumer failed to start")
		return 1
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	s.log.Info().Msg("supervisor: shutdown signal received, stopping consumer")
	s.consumer.Stop()
	return 0
}
