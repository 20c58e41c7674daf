package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/giftkeeper/giftkeeper/giftkeeper"
	"github.com/giftkeeper/giftkeeper/giftkeeper/commands"
	"github.com/giftkeeper/giftkeeper/giftkeeper/games"
	"github.com/giftkeeper/giftkeeper/giftkeeper/gift"
	"github.com/giftkeeper/giftkeeper/giftkeeper/handlers"
	"github.com/giftkeeper/giftkeeper/giftkeeper/logger"
	"github.com/giftkeeper/giftkeeper/giftkeeper/services"
	"github.com/giftkeeper/giftkeeper/giftkeeper/steam"
	"github.com/giftkeeper/giftkeeper/giftkeeper/storage"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := giftkeeper.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting Giftkeeper",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, closeDB, err := newBackend(ctx, cfg)
	if err != nil {
		slog.Error("Failed to set up gift storage", slog.Any("error", err))
		os.Exit(-1)
	}
	if closeDB != nil {
		defer closeDB()
	}

	store, err := gift.NewStore(ctx, backend)
	if err != nil {
		slog.Error("Failed to load gift pool", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Gift pool loaded", slog.Int("entries", len(store.All())))

	claims := gift.NewReservationTable(gift.DefaultReservationTTL, gift.DefaultReaperHorizon)
	claims.StartReaper(ctx, gift.DefaultReaperPeriod)

	catalog := steam.NewCatalog("")
	go func() {
		fetchCtx, fetchCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer fetchCancel()
		if err := catalog.Refresh(fetchCtx); err != nil {
			slog.Error("Initial steam app list fetch failed",
				slog.String("type", "steam"),
				slog.Any("error", err))
		}
	}()
	catalog.StartRefresher(ctx, time.Duration(cfg.Steam.RefreshHours)*time.Hour)

	b := giftkeeper.New(*cfg, version, commit)
	b.Catalog = catalog

	h := handler.New()
	h.Command("/gift", handlers.WrapWithLogging("gift", commands.GiftHandler(b)))
	h.Autocomplete("/gift", commands.GiftAutocompleteHandler(b))
	h.Component("/giftmenu/{page}", handlers.WrapComponentWithLogging("giftmenu", commands.GiftMenuHandler(b)))
	h.Component("/giftget/{game}/{owner}", handlers.WrapComponentWithLogging("giftget", commands.GiftGetHandler(b)))
	h.Component("/giftaccept/{entry}/{requester}", handlers.WrapComponentWithLogging("giftaccept", commands.GiftAcceptHandler(b)))
	h.Component("/giftdeny/{entry}/{requester}", handlers.WrapComponentWithLogging("giftdeny", commands.GiftDenyHandler(b)))
	h.Command("/game", handlers.WrapWithLogging("game", commands.GameHandler(b)))
	h.Command("/version", commands.VersionHandler(b))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady), handlers.MessageHandler(b)); err != nil {
		slog.Error("Failed to setup bot", slog.Any("error", err))
		os.Exit(-1)
	}

	notifier := services.NewDMNotifier(b.Client)
	b.Gifts = gift.NewService(store, claims, catalog, notifier)
	b.NumberGame = games.NewNumberGuess(notifier)

	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		b.Client.Close(closeCtx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands", slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands", slog.Any("error", err))
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(ctx, 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}

// newBackend builds the configured persistence backend, optionally wrapped
// with bucket snapshot uploads.
func newBackend(ctx context.Context, cfg *giftkeeper.Config) (gift.Backend, func(), error) {
	var backend gift.Backend
	var closeDB func()

	switch cfg.Storage.Driver {
	case "", "json":
		backend = storage.NewJSONFile(cfg.Storage.Path)
	case "postgres":
		db, err := storage.NewDB(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		pg, err := storage.NewPostgres(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		backend = pg
		closeDB = db.Close
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Backup.Bucket != "" {
		backup, err := services.NewSpacesBackup(cfg.Backup.Key, cfg.Backup.Secret, cfg.Backup.Region, cfg.Backup.Bucket, cfg.Backup.Prefix)
		if err != nil {
			if closeDB != nil {
				closeDB()
			}
			return nil, nil, err
		}
		backend = storage.NewWithBackup(backend, backup)
	}

	return backend, closeDB, nil
}
