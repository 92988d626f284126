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

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-shop-console/console"
	"github.com/jrsteele09/go-shop-console/gateway"
	"github.com/jrsteele09/go-shop-console/internal/config"
	"github.com/jrsteele09/go-shop-console/internal/logging"
	"github.com/jrsteele09/go-shop-console/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("console failed")
	}
	log.Info().Msg("Console stopped")
}

func run() error {
	c, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName() + " Console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openStorage(c)
	if err != nil {
		return err
	}
	defer closeStorage()

	store := session.NewStore(storage, session.WithNamespace(c.GetStorageNamespace()))
	gw, err := gateway.New(c.GetIdentityURL(), store,
		gateway.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}))
	if err != nil {
		return err
	}

	handler, err := console.New(gw, []byte(c.GetCookieKey()),
		console.WithAppName(c.GetAppName()),
		console.WithSecureCookies(c.GetEnv() == "PROD"))
	if err != nil {
		return err
	}
	httpServer := &http.Server{Addr: c.GetConsolePort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// guarded pages answer 503 until this finishes
		if err := store.Initialize(gctx, gw); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		snap := store.Snapshot()
		log.Info().Bool("authenticated", snap.IsAuthenticated()).Str("role", string(snap.Role())).Msg("session restored")
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Str("identity", c.GetIdentityURL()).Msg("Console listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server.ListenAndServe %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStorage(c config.Config) (session.Storage, func(), error) {
	switch c.GetStorageBackend() {
	case config.StorageMemory:
		log.Warn().Msg("console session kept in memory, it will not survive a restart")
		return session.NewMemoryStorage(), func() {}, nil
	case config.StorageFile:
		return session.NewFileStorage(c.GetStoragePath()), func() {}, nil
	case config.StorageRedis:
		if c.GetRedisURL() == "" {
			return nil, nil, errors.New("CONSOLE_STORAGE=redis needs REDIS_URL")
		}
		client, err := session.NewRedisClient(c.GetRedisURL())
		if err != nil {
			return nil, nil, fmt.Errorf("redis url: %w", err)
		}
		return session.NewRedisStorage(client, session.WithKeyPrefix("console:")), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown CONSOLE_STORAGE %q", c.GetStorageBackend())
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
