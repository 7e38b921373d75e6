package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/authfake"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog/log"
)

const demoCredential = "demo"

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	tokenTTL := flag.Duration("ttl", authfake.DefaultTokenTTL, "lifetime of issued session tokens")
	flag.Parse()

	if err := run(*configPath, *tokenTTL); err != nil {
		log.Fatal().Err(err).Msg("Error running fake backend")
	}
	log.Info().Msg("Fake backend stopped")
}

func run(configPath string, tokenTTL time.Duration) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logging.New(c)
	displayAppname("Fake Backend")

	fake := authfake.New(
		authfake.WithTokenTTL(tokenTTL),
		authfake.WithCredentialVerifier(demoOrDecoded),
	)

	server := &http.Server{Addr: c.GetFakeBackendPort(), Handler: fake, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(server) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

// demoOrDecoded accepts the demo credential and otherwise any JWT, such as a
// Google ID token.
func demoOrDecoded(credential string) (*users.User, error) {
	if credential == demoCredential {
		return &users.User{ID: "demo-user", Name: "Demo User", Email: "demo@example.com"}, nil
	}
	return authfake.DecodedCredential(credential)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Fake backend listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
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
