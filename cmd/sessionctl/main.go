package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/rs/zerolog/log"
)

const usage = `usage: sessionctl [-config file] <command> [flags]

commands:
  login    sign in with -credential, or through Google when omitted
  status   show the restored session
  whoami   fetch the signed-in user's profile
  refresh  extend the session
  logout   end the session
  watch    follow the session, printing warnings and countdowns
`

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		stop()
		log.Fatal().Err(err).Msg("sessionctl failed")
	}
}

func run(ctx context.Context, configPath, command string, args []string) (returnError error) {
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

	repo, closeRepo, err := session.OpenRepo(c)
	if err != nil {
		return err
	}
	defer closeRepo()

	client, err := session.Bootstrap(c, repo)
	if err != nil {
		return err
	}
	defer client.Close()

	cmd, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q", command)
	}
	if command == "login" || command == "watch" {
		displayAppname(c.GetAppName())
	}
	return cmd(ctx, &app{cfg: c, client: client}, args)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
