package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/wxpipe/wxpipe/internal/classify"
	"github.com/wxpipe/wxpipe/internal/config"
	"github.com/wxpipe/wxpipe/internal/contacts"
	"github.com/wxpipe/wxpipe/internal/download"
	"github.com/wxpipe/wxpipe/internal/gateway"
	"github.com/wxpipe/wxpipe/internal/groups"
	"github.com/wxpipe/wxpipe/internal/handlers"
	"github.com/wxpipe/wxpipe/internal/idiom"
	"github.com/wxpipe/wxpipe/internal/inbound"
	"github.com/wxpipe/wxpipe/internal/logger"
	"github.com/wxpipe/wxpipe/internal/notify"
	"github.com/wxpipe/wxpipe/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideGatewayClient,
			provideNotifier,
			provideContactStore,
			provideContactLookup,
			provideGroupDirectory,
			provideClassifier,
			provideResolver,
			provideRetriever,
			provideGame,
			provideStatusTracker,
			provideDeduplicator,
			provideQueue,
			provideIngestor,
			providePipeline,
			provideWorker,
			provideServerHandler(provideSyncHandler),
			provideServerHandler(handlers.NewHealthHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
			startWorker,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideGatewayClient(log *slog.Logger, cfg config.Config) (*gateway.Client, error) {
	return gateway.NewClient(log, cfg.Gateway)
}

func provideNotifier(log *slog.Logger, cfg config.Config) *notify.Notifier {
	return notify.NewNotifier(log, cfg.Notify.NtfyURL)
}

func provideContactStore(log *slog.Logger, cfg config.Config) *contacts.Store {
	return contacts.NewStore(log, cfg.Sync.ContactPath)
}

func provideContactLookup(log *slog.Logger, client *gateway.Client, cfg config.Config) *contacts.Lookup {
	return contacts.NewLookup(log, client, cfg.Gateway.AccountID)
}

func provideGroupDirectory(log *slog.Logger, client *gateway.Client, cfg config.Config) *groups.Directory {
	return groups.NewDirectory(log, client, cfg.Sync.GroupPath)
}

func provideClassifier(log *slog.Logger, cfg config.Config) *classify.Classifier {
	return classify.NewClassifier(log, cfg.Gateway.AccountID)
}

func provideResolver(log *slog.Logger, store *contacts.Store, lookup *contacts.Lookup, dir *groups.Directory) *classify.Resolver {
	return classify.NewResolver(log, store, lookup, dir)
}

func provideRetriever(log *slog.Logger, client *gateway.Client, cfg config.Config) *download.Retriever {
	return download.NewRetriever(log, client, cfg.Sync.ImageDir, cfg.Sync.FileDir)
}

func provideGame(log *slog.Logger, client *gateway.Client, retriever *download.Retriever, cfg config.Config) *idiom.Game {
	return idiom.NewGame(log, client, retriever, cfg.Idiom)
}

func provideStatusTracker(log *slog.Logger, notifier *notify.Notifier) *inbound.StatusTracker {
	return inbound.NewStatusTracker(log, notifier)
}

func provideDeduplicator(log *slog.Logger) *inbound.Deduplicator {
	return inbound.NewDeduplicator(log)
}

func provideQueue(log *slog.Logger, cfg config.Config) *inbound.Queue {
	return inbound.NewQueue(log, cfg.Sync.QueueSize)
}

func provideIngestor(log *slog.Logger, status *inbound.StatusTracker, dedup *inbound.Deduplicator, queue *inbound.Queue) *inbound.Ingestor {
	return inbound.NewIngestor(log, status, dedup, queue)
}

func providePipeline(
	log *slog.Logger,
	classifier *classify.Classifier,
	resolver *classify.Resolver,
	store *contacts.Store,
	client *gateway.Client,
	retriever *download.Retriever,
	notifier *notify.Notifier,
	game *idiom.Game,
) *inbound.Pipeline {
	return inbound.NewPipeline(log, classifier, resolver, store, client, retriever, notifier, game, inbound.NopDeliverer{})
}

func provideWorker(log *slog.Logger, queue *inbound.Queue, pipeline *inbound.Pipeline) *inbound.Worker {
	return inbound.NewWorker(log, queue, pipeline)
}

func provideSyncHandler(log *slog.Logger, cfg config.Config, ingestor *inbound.Ingestor) *handlers.SyncHandler {
	return handlers.NewSyncHandler(log, cfg.Gateway.AccountID, ingestor)
}

type serverParams struct {
	fx.In
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Config.Server.Addr, params.Handlers...)
}

// startServer is invoked before startWorker so its stop hook runs
// last: the queue is gated and drained before the listener closes.
func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, cfg config.Config, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting ingress",
				slog.String("addr", cfg.Server.Addr),
				slog.String("path", "/msg/SyncMessage/"+cfg.Gateway.AccountID),
			)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func startWorker(lc fx.Lifecycle, worker *inbound.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			worker.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			worker.Stop(ctx)
			return nil
		},
	})
}
