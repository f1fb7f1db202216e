package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/activitymap"
	"github.com/goliatone/go-credentials/federated"
	"github.com/goliatone/go-credentials/mailer"
	"github.com/goliatone/go-credentials/metrics"
	"github.com/goliatone/go-credentials/repository"
	"github.com/goliatone/go-credentials/server"
	"github.com/goliatone/go-print"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "credentials: %s\n", print.MaybePrettyJSON(err))
		os.Exit(1)
	}
}

func run() error {
	logger := credentials.DefaultLogger()

	opts, err := credentials.LoadOptions()
	if err != nil {
		return err
	}

	ctx := context.Background()

	db, err := repository.Open(opts.DatabaseDriver, opts.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.CreateSchema(ctx, db); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink, err := metrics.NewSink(registry)
	if err != nil {
		return err
	}

	var mail credentials.Mailer = credentials.LogMailer{Logger: logger}
	if opts.SMTP.Host != "" {
		smtpMailer, err := mailer.NewSMTP(opts.SMTP, mailer.WithLogger(logger))
		if err != nil {
			return err
		}
		mail = smtpMailer
	} else {
		logger.Warn("SMTP host not configured, emails are written to the log")
	}

	tokens := credentials.NewTokenServiceFromConfig(opts, logger)

	var validator credentials.TokenValidator = tokens
	if opts.PreviousSigningKey != "" {
		previous := credentials.NewTokenService(
			[]byte(opts.PreviousSigningKey),
			opts.TokenExpiration,
			opts.Issuer,
			opts.Audience,
			logger,
		)
		validator = credentials.NewMultiTokenValidator(tokens, previous)
	}

	sinks := credentials.MultiActivitySink{sink}
	if opts.Audit.Enabled {
		sinks = append(sinks, activitymap.NewLogSink(logger, activitymap.FromAudit(opts.Audit)...))
	}

	manager, err := credentials.NewManager(opts, repository.NewAccounts(db), tokens, mail,
		credentials.WithLogger(logger),
		credentials.WithActivitySink(sinks),
	)
	if err != nil {
		return err
	}

	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithGatherer(registry),
		server.WithHealthCheck(func(ctx context.Context) error {
			return db.PingContext(ctx)
		}),
	}

	if opts.Google.Enabled() {
		google, err := federated.NewGoogle(opts, opts.Google, federated.WithLogger(logger))
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts, server.WithGoogle(google))
	}

	srv := server.New(server.FromOptions(opts), manager, validator, serverOpts...)

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Listen(opts.ListenAddr)
	}()

	select {
	case err := <-errs:
		return err
	case sig := <-waitExitSignal():
		logger.Info("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func waitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
