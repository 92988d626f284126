package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-shop-console/internal/config"
	"github.com/jrsteele09/go-shop-console/internal/logging"
	"github.com/jrsteele09/go-shop-console/server"
	"github.com/jrsteele09/go-shop-console/session"
	"github.com/jrsteele09/go-shop-console/token/refresh"
	fakeuserrepo "github.com/jrsteele09/go-shop-console/users/repofake"
	"github.com/jrsteele09/go-shop-console/users/postgres"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const maintenanceInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("identity server failed")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeRepos, err := openRepos(ctx, c)
	if err != nil {
		return err
	}
	defer closeRepos()

	handler, err := server.New(c, repos)
	if err != nil {
		return err
	}
	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer)
	})
	g.Go(func() error {
		handler.RunMaintenance(gctx, maintenanceInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer)
	})
	return g.Wait()
}

// openRepos uses postgres and redis when they are configured and falls back
// to in-memory storage otherwise.
func openRepos(ctx context.Context, c config.Config) (server.Repos, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	repos := server.Repos{
		Users:  fakeuserrepo.NewFakeUserRepo(),
		Grants: refresh.NewInMemoryRepo(),
	}

	if url := c.GetDatabaseURL(); url != "" {
		pool, err := postgres.Connect(ctx, url)
		if err != nil {
			return repos, func() {}, err
		}
		closers = append(closers, pool.Close)
		userRepo := postgres.NewUserRepo(pool)
		if err := userRepo.Migrate(ctx); err != nil {
			closeAll()
			return repos, func() {}, err
		}
		repos.Users = userRepo
		log.Info().Msg("users stored in postgres")
	} else {
		log.Warn().Msg("DATABASE_URL not set, users are kept in memory")
	}

	if url := c.GetRedisURL(); url != "" {
		client, err := session.NewRedisClient(url)
		if err != nil {
			closeAll()
			return repos, func() {}, fmt.Errorf("redis url: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		repos.Grants = refresh.NewRedisRepo(client, "")
		log.Info().Msg("refresh grants stored in redis")
	}
	return repos, closeAll, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
