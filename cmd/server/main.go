package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-console-session/authapi"
	"github.com/jrsteele09/go-console-session/internal/config"
	"github.com/jrsteele09/go-console-session/internal/logging"
	"github.com/jrsteele09/go-console-session/persist"
	"github.com/jrsteele09/go-console-session/refresh"
	"github.com/jrsteele09/go-console-session/server"
	"github.com/jrsteele09/go-console-session/session"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())
	logger := logging.Component("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := newPersistRepo(c)
	if err != nil {
		return fmt.Errorf("persist repo: %w", err)
	}
	defer closeRepo()

	api, err := newAPIClient(ctx, c)
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}

	navigation := server.NewNavigation(c.GetLandingRoute())
	hydrated := session.NewHydrationSignal()
	manager, err := session.NewManager(
		session.Deps{API: api, Persist: repo, Navigator: navigation, Locator: navigation},
		session.WithContext(ctx),
		session.WithRoutes(c.GetLoginRoute(), c.GetLandingRoute()),
		session.WithIntentTTL(c.GetIntentTTL()),
		session.WithHydrationGate(hydrated),
		session.WithRefreshOptions(
			refresh.WithInterval(c.GetRefreshCheckInterval()),
			refresh.WithThreshold(c.GetRefreshThreshold()),
			refresh.WithActivityThrottle(c.GetActivityThrottle()),
		),
	)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}
	api.SetTokenSource(manager.Credentials())

	handler, err := server.New(c, manager, navigation)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	listener, err := net.Listen("tcp", c.GetPort())
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.GetPort(), err)
	}
	httpServer := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- serve(httpServer, listener) }()

	// The console is interactive once the listener is bound
	hydrated.Open()
	go func() {
		if err := manager.Initializer().Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Session initialisation failed")
		}
	}()

	select {
	case <-waitForStopSignal():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	manager.Scheduler().Stop()
	cancel()
	return shutdown(httpServer)
}

func newPersistRepo(c config.Config) (persist.Repo, func(), error) {
	noop := func() {}
	switch c.GetStoreBackend() {
	case config.StoreMemory:
		return persist.NewInMemoryRepo(), noop, nil
	case config.StoreRedis:
		repo, client, err := persist.NewRedisRepoFromURL(c.GetRedisURL(), c.GetStoreKeyPrefix())
		if err != nil {
			return nil, noop, err
		}
		return repo, func() { _ = client.Close() }, nil
	default:
		var opts []persist.FileRepoOption
		if key := c.GetStoreEncryptionKey(); key != "" {
			sealer, err := persist.NewSealerFromHex(key)
			if err != nil {
				return nil, noop, err
			}
			opts = append(opts, persist.WithSealer(sealer))
		}
		repo, err := persist.NewFileRepo(c.GetDataFolder(), opts...)
		if err != nil {
			return nil, noop, err
		}
		log.Info().Str("path", repo.Path()).Bool("sealed", len(opts) > 0).Msg("Persisting console state to file")
		return repo, noop, nil
	}
}

func newAPIClient(ctx context.Context, c config.Config) (*authapi.HTTPClient, error) {
	opts := []authapi.ClientOption{
		authapi.WithTimeout(c.GetRequestTimeout()),
		authapi.WithRetries(c.GetRequestRetries()),
	}
	if issuer := c.GetOIDCIssuer(); issuer != "" {
		verifier, err := authapi.NewOIDCVerifier(ctx, issuer, c.GetOIDCClientID())
		if err != nil {
			return nil, err
		}
		opts = append(opts, authapi.WithIDTokenVerifier(verifier))
	}
	return authapi.NewHTTPClient(c.GetAPIBaseURL(), opts...)
}

func serve(server *http.Server, listener net.Listener) error {
	log.Info().Str("addr", listener.Addr().String()).Msg("Server listening")
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.Serve %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
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
