package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"credentials/internal/audit"
	"credentials/internal/audit/publishers/kafka"
	"credentials/internal/certificate"
	certstore "credentials/internal/certificate/store"
	"credentials/internal/credential"
	credstore "credentials/internal/credential/store"
	"credentials/internal/platform/config"
	"credentials/internal/platform/filestore"
	"credentials/internal/platform/metrics"
	"credentials/internal/platform/postgres"
	"credentials/internal/signatory"
	sigstore "credentials/internal/signatory/store"
	"credentials/internal/site"
	sitestore "credentials/internal/site/store"
	"credentials/internal/template"
	tplstore "credentials/internal/template/store"
	httptransport "credentials/internal/transport/http"
	"credentials/pkg/platform/tx"
)

type stores struct {
	sites        site.Store
	signatories  signatory.Store
	templates    template.Store
	certificates certificate.Store
	credentials  credential.Store
	runner       tx.Runner
}

func memoryStores() stores {
	return stores{
		sites:        sitestore.NewInMemory(),
		signatories:  sigstore.NewInMemory(),
		templates:    tplstore.NewInMemory(),
		certificates: certstore.NewInMemory(),
		credentials:  credstore.NewInMemory(),
		runner:       tx.Journal{},
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		sites:        sitestore.NewPostgres(db),
		signatories:  sigstore.NewPostgres(db),
		templates:    tplstore.NewPostgres(db),
		certificates: certstore.NewPostgres(db),
		credentials:  credstore.NewPostgres(db),
		runner:       postgres.NewTransactor(db),
	}
}

type app struct {
	router  http.Handler
	events  *audit.Queue
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{}
	m := metrics.New()
	reg := m.Registry()

	st := memoryStores()
	opts := httptransport.Options{Logger: log, Metrics: m, RequestTimeout: cfg.RequestTimeout}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		st = postgresStores(db)
		opts.Ready = db
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	files, err := openFiles(ctx, cfg.Storage, log)
	if err != nil {
		a.close()
		return nil, err
	}

	fallback := audit.NewLogPublisher(log)
	var sink audit.Publisher = fallback
	if len(cfg.Kafka.Brokers) > 0 {
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := kafka.EnsureTopic(topicCtx, cfg.Kafka.Brokers, cfg.Kafka.Topic, 3, 1); err != nil {
			log.Warn("could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		cancel()
		producer, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, fallback,
			kafka.WithLogger(log),
			kafka.WithMetrics(kafka.NewMetrics(reg)),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)
		sink = producer
	}
	a.events = audit.NewQueue(sink, fallback, log, 0)

	sites := site.NewService(st.sites, log)
	signatories := signatory.NewService(st.signatories, files, st.runner, cfg.SignatoryImageMaxBytes, log)
	templates := template.NewService(st.templates, files, st.runner, log)
	certificates := certificate.NewService(st.certificates, sites, signatories, templates, st.runner, reg, log)
	signatories.SetUsageChecker(certificates)
	templates.SetUnlinker(certificates)
	credentials := credential.NewService(st.credentials, credential.Sources{
		Definitions: certificates,
		Signatories: signatories,
		Templates:   templates,
	}, a.events, reg, log)

	a.router = httptransport.NewRouter(opts,
		site.NewHandler(sites, log),
		signatory.NewHandler(signatories, log),
		template.NewHandler(templates, log),
		certificate.NewHandler(certificates, log),
		credential.NewHandler(credentials, log),
	)
	return a, nil
}

func openFiles(ctx context.Context, cfg config.Storage, log *slog.Logger) (filestore.Storage, error) {
	switch cfg.Backend {
	case config.StorageS3:
		s, err := filestore.NewS3(ctx, cfg.Bucket, cfg.Region, cfg.Endpoint,
			filestore.WithS3Prefix(cfg.Prefix),
			filestore.WithS3Logger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("open s3 storage: %w", err)
		}
		return s, nil
	case config.StorageMemory:
		return filestore.NewMemory(), nil
	default:
		l, err := filestore.NewLocal(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		return l, nil
	}
}
