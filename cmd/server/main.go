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
	"github.com/jrsteele09/go-auth-broker/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
		} else {
			break
		}
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

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c.GetEnv())
	displayAppname(c.GetAppName())
	logConfig(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(a.server)
	})
	if a.janitor != nil {
		g.Go(func() error {
			return a.janitor(gctx, c.GetJanitorInterval())
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(a.server)
	})
	return g.Wait()
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

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

// logConfig prints the effective settings. Secrets are never logged.
func logConfig(c config.Config) {
	log.Info().
		Str("app_url", c.GetAppURL()).
		Str("hydra_public_url", c.GetAuthorizationServerPublicURL()).
		Str("hydra_internal_url", c.GetAuthorizationServerInternalURL()).
		Str("hydra_admin_url", c.GetAdminURL()).
		Str("kratos_public_url", c.GetIdentityProviderURL()).
		Str("client_id", c.GetClientID()).
		Str("redirect_uri", c.GetRedirectURI()).
		Str("session_store", c.GetSessionStore()).
		Dur("session_ttl", c.GetSessionTTL()).
		Dur("upstream_timeout", c.GetUpstreamTimeout()).
		Bool("id_token_verification", c.GetOIDCIssuer() != "").
		Msg("App settings")
}
