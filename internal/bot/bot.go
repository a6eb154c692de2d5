// Package bot implements lifecycle management and component orchestration
// for the brainbot application.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/brainbot/internal/httpapi"
)

// Bot wires the Telegram listener, the HTTP server, and the scheduler into
// one run loop with shared shutdown.
type Bot struct {
	logger    *slog.Logger
	tgBot     *tgbot.Bot
	polling   bool
	server    *httpapi.Server
	scheduler *Scheduler
}

// NewBot creates the orchestrator. When polling is false the Telegram
// listener is not started; updates are expected through the webhook route
// on the HTTP server instead.
func NewBot(logger *slog.Logger, tgBot *tgbot.Bot, polling bool, server *httpapi.Server, scheduler *Scheduler) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		tgBot:     tgBot,
		polling:   polling,
		server:    server,
		scheduler: scheduler,
	}
}

// Run starts all components and blocks until the context is cancelled or a
// component fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...", "polling", b.polling)

	g, gCtx := errgroup.WithContext(ctx)

	if b.polling {
		g.Go(func() error {
			b.logger.Info("Starting Telegram long-polling listener...")
			b.tgBot.Start(gCtx)
			b.logger.Info("Telegram listener stopped.")

			if gCtx.Err() == nil {
				b.logger.Warn("Telegram listener stopped unexpectedly without context cancellation.")
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := b.server.Start(); err != nil {
			b.logger.Error("HTTP server failed", "error", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping HTTP server...")
		// Fresh context: gCtx is already cancelled at this point.
		if err := b.server.Shutdown(context.Background()); err != nil {
			b.logger.Error("Error shutting down HTTP server", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
