package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/credsys/credit-pipeline/pkg/api"
	"github.com/credsys/credit-pipeline/pkg/broker"
	"github.com/credsys/credit-pipeline/pkg/card"
	"github.com/credsys/credit-pipeline/pkg/client"
	"github.com/credsys/credit-pipeline/pkg/config"
	"github.com/credsys/credit-pipeline/pkg/events"
	"github.com/credsys/credit-pipeline/pkg/outbox"
	"github.com/credsys/credit-pipeline/pkg/proposal"
	"github.com/credsys/credit-pipeline/pkg/telemetry"
)

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "credit-system").
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromFile("./cmd/credit-system")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	shutdownTelemetry, err := telemetry.Init(cfg.Observability, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry()

	store, db, err := outbox.NewStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize outbox store")
	}
	if db == nil {
		logger.Fatal().Str("type", cfg.Database.Type).
			Msg("the credit pipeline requires a SQL database for its entity stores")
	}
	defer db.Close()

	bindings := []broker.Binding{
		{Queue: cfg.Broker.ProposalQueue, Exchange: cfg.Broker.Exchange, RoutingKey: events.TypeClientCreated},
		{Queue: cfg.Broker.CardQueue, Exchange: cfg.Broker.Exchange, RoutingKey: events.TypeCreditProposalApproved},
	}

	publisher, err := broker.NewPublisher(ctx, &cfg.Broker, bindings, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize publisher")
	}
	defer publisher.Close()

	clientRepo := client.NewPostgresRepository(db)
	clientService := client.NewService(db, clientRepo, store, logger)

	proposalRepo := proposal.NewPostgresRepository(db)
	proposalService := proposal.NewService(db, proposalRepo, store, clientRepo, logger)

	cardRepo := card.NewPostgresRepository(db)
	cardService := card.NewService(cardRepo, logger)

	proposalConsumer := broker.NewConsumer(&cfg.Broker, bindings[0], func() (broker.Handler, error) {
		return proposal.NewHandler(proposalService), nil
	}, logger)
	cardConsumer := broker.NewConsumer(&cfg.Broker, bindings[1], func() (broker.Handler, error) {
		return card.NewHandler(cardService), nil
	}, logger)

	go proposalConsumer.Run(ctx)
	go cardConsumer.Run(ctx)

	processor := outbox.NewProcessor(store, publisher, outbox.NewLogAlerter(logger), cfg.Outbox, logger)
	processor.Start(ctx)
	defer processor.Stop()

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewRouter(api.NewHandlers(clientService, cardService, logger)),
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
}
