// Command sessiond runs the session client and exposes its state over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/api"
	"github.com/bookwise/session-client/internal/core/ports"
	"github.com/bookwise/session-client/internal/core/service"
	"github.com/bookwise/session-client/internal/infrastructure/backend"
	"github.com/bookwise/session-client/internal/infrastructure/config"
	"github.com/bookwise/session-client/internal/infrastructure/db/memory"
	dbmongo "github.com/bookwise/session-client/internal/infrastructure/db/mongo"
	dbredis "github.com/bookwise/session-client/internal/infrastructure/db/redis"
	"github.com/bookwise/session-client/internal/infrastructure/http/handlers"
	"github.com/bookwise/session-client/internal/infrastructure/queue"
	"github.com/bookwise/session-client/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sessiond: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
		Service: "sessiond",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]handlers.Check)

	var bearer, providerSlot ports.CredentialStore
	if cfg.Redis.Addr != "" {
		rdb, err := dbredis.Connect(ctx, dbredis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		b, p := dbredis.NewStores(rdb, cfg.InstanceID, cfg.Redis.CredentialTTL)
		bearer, providerSlot = b, p
		checks["redis"] = handlers.RedisCheck(rdb)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, credentials are kept in memory")
		bearer, providerSlot = memory.NewCredentialStore(), memory.NewCredentialStore()
	}

	var profiles ports.ProfileRepository
	if cfg.Mongo.URI != "" {
		db, err := dbmongo.Open(ctx, dbmongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, AppName: "sessiond"})
		if err != nil {
			return err
		}
		defer func() {
			if err := dbmongo.Close(db, shutdownTimeout); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		}()
		repo := dbmongo.NewProfileRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("profile indexes not ensured")
		}
		profiles = repo
		checks["mongodb"] = handlers.MongoCheck(db)
	} else {
		log.Warn().Msg("MONGO_URI not set, profiles are kept in memory")
		profiles = memory.NewProfileRepository()
	}

	authAPI := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout, log)
	provider := backend.NewProviderClient(backend.ProviderConfig{
		BaseURL:        cfg.Provider.BaseURL,
		FeedURL:        cfg.Provider.FeedURL,
		APIKey:         cfg.Provider.APIKey,
		RequestTimeout: cfg.Backend.RequestTimeout,
	}, providerSlot, log)

	events := queue.NewDispatcher(0, log)
	sessions := service.NewSessionService(bearer, authAPI, provider, profiles, events, service.Options{
		PrimaryTimeout:    cfg.Timeouts.PrimaryVerify,
		SecondaryTimeout:  cfg.Timeouts.SecondaryLookup,
		ProfileTimeout:    cfg.Timeouts.ProfileLoad,
		SafetyTimeout:     cfg.Timeouts.Safety,
		ProfileStaleAfter: cfg.Timeouts.ProfileStaleAfter,
	}, log)
	sessions.Start(ctx)
	defer sessions.Close()

	go logTransitions(ctx, sessions, log)

	e := api.NewRouter(api.Deps{Sessions: sessions, Checks: checks, Log: log})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// logTransitions writes one line per observed phase change.
func logTransitions(ctx context.Context, sessions *service.SessionService, log zerolog.Logger) {
	updates, unsubscribe := sessions.Subscribe()
	defer unsubscribe()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			key := string(st.Phase) + "/" + string(st.ProfileStatus)
			if key == last {
				continue
			}
			last = key
			ev := log.Info().Str("phase", string(st.Phase)).Bool("initialized", st.Initialized)
			if st.Session != nil {
				ev = ev.Str("subject_id", st.Session.SubjectID).Str("source", st.Session.Source)
			}
			ev.Msg("session state")
		}
	}
}
