package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/api"
	"github.com/matiasleandrokruk/parley/internal/domain/audit"
	"github.com/matiasleandrokruk/parley/internal/domain/chat"
	"github.com/matiasleandrokruk/parley/internal/domain/preview"
	"github.com/matiasleandrokruk/parley/internal/infra/config"
	"github.com/matiasleandrokruk/parley/internal/infra/eventbus"
	"github.com/matiasleandrokruk/parley/internal/infra/llm"
	"github.com/matiasleandrokruk/parley/internal/infra/sqlite"
	"github.com/matiasleandrokruk/parley/internal/server"
)

// app is the wired process: HTTP handler plus the background audit writer.
type app struct {
	handler http.Handler
	router  *llm.Router
	db      *sql.DB
	bus     *eventbus.Bus
	events  <-chan eventbus.Event
	audit   *audit.Recorder
	log     logrus.FieldLogger
}

func newApp(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*app, error) {
	catalog, err := llm.LoadCatalog(cfg.LLM.CatalogPath)
	if err != nil {
		return nil, err
	}
	router := llm.BuildRouter(catalog, cfg.LLMSettings())

	db, err := openAuditDB(ctx, cfg.Audit.DBPath)
	if err != nil {
		router.Close() //nolint:errcheck
		return nil, err
	}

	bus := eventbus.New()
	recorder := audit.NewRecorder(db, log)
	manager := chat.NewManager(chat.Config{
		DefaultModel:     cfg.LLM.DefaultModel,
		HistoryDedupe:    cfg.Chat.HistoryDedupe,
		Assistant:        cfg.AssistantSpec(),
		Poll:             cfg.PollConfig(),
		MaxConversations: cfg.Chat.MaxConversations,
	}, chat.Deps{
		Router: router,
		Previews: preview.NewAdapter(preview.Config{
			CSVRowLimit:   cfg.Preview.CSVRowLimit,
			TextCharLimit: cfg.Preview.TextCharLimit,
			MaxPixels:     cfg.Preview.MaxPixels,
		}),
		Bus: bus,
		Log: log,
	})

	// Fail fast on a bad default model instead of on the first request.
	if _, err := manager.Get(chat.DefaultConversationID); err != nil {
		db.Close()
		router.Close() //nolint:errcheck
		return nil, fmt.Errorf("default conversation: %w", err)
	}

	return &app{
		handler: api.NewRouter(api.Deps{Conversations: manager, Providers: router, Turns: recorder, Log: log}),
		router:  router,
		db:      db,
		bus:     bus,
		events:  bus.Subscribe(eventbus.TopicTurnCompleted),
		audit:   recorder,
		log:     log,
	}, nil
}

// runAudit drains turn events into the audit log until ctx is done.
func (a *app) runAudit(ctx context.Context) {
	a.audit.Run(ctx, a.events)
}

func (a *app) close() {
	a.bus.Unsubscribe(eventbus.TopicTurnCompleted, a.events)
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("close audit database")
	}
	if err := a.router.Close(); err != nil {
		a.log.WithError(err).Warn("close llm providers")
	}
}

func openAuditDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sqlite.NewDB(path)
	if err != nil {
		return nil, err
	}
	if err := sqlite.MigrateUp(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func serve(ctx context.Context, cfg config.Config, log logrus.FieldLogger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	auditDone := make(chan struct{})
	auditCtx, stopAudit := context.WithCancel(context.Background())
	go func() {
		a.runAudit(auditCtx)
		close(auditDone)
	}()

	srv := server.NewServer(a.handler, server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		err = srv.Shutdown(shutdownCtx)
		cancel()
		if serveErr := <-errCh; err == nil {
			err = serveErr
		}
	}

	stopAudit()
	<-auditDone
	return err
}

func migrate(ctx context.Context, cfg config.Config, log logrus.FieldLogger, out io.Writer) error {
	db, err := openAuditDB(ctx, cfg.Audit.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	v, err := sqlite.MigrationVersion(ctx, db)
	if err != nil {
		return err
	}
	log.WithField("version", v).Info("migrations applied")
	fmt.Fprintf(out, "audit database at version %d\n", v) //nolint:errcheck
	return nil
}

func listModels(cfg config.Config, out io.Writer) error {
	catalog, err := llm.LoadCatalog(cfg.LLM.CatalogPath)
	if err != nil {
		return err
	}
	def := catalog.DefaultModel().ID
	if cfg.LLM.DefaultModel != "" {
		if m, ok := catalog.Lookup(cfg.LLM.DefaultModel); ok {
			def = m.ID
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tPROVIDER\tMODE\tALIASES") //nolint:errcheck
	for _, m := range catalog.Models {
		id := m.ID
		if id == def {
			id += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, m.Provider, m.Mode, strings.Join(m.Aliases, ",")) //nolint:errcheck
	}
	return tw.Flush()
}
