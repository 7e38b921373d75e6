package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jrsteele09/go-auth-session/credential/google"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/session"
)

type app struct {
	cfg    config.Config
	client *session.Client
	out    io.Writer
}

func (a *app) printf(format string, args ...any) {
	out := a.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":   loginCommand,
	"status":  statusCommand,
	"whoami":  whoamiCommand,
	"refresh": refreshCommand,
	"logout":  logoutCommand,
	"watch":   watchCommand,
}

func loginCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	credential := fs.String("credential", "", "external credential to exchange; runs the Google flow when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *credential == "" {
		flow, err := google.New(ctx, a.cfg)
		if err != nil {
			return err
		}
		idToken, err := flow.Acquire(ctx)
		if err != nil {
			return err
		}
		*credential = idToken
	}

	result := a.client.Manager.Login(ctx, *credential)
	if !result.Success {
		return errors.New(result.Error)
	}
	a.printf("Signed in as %s <%s>\n", result.User.DisplayName(), result.User.Email)
	return nil
}

func statusCommand(ctx context.Context, a *app, _ []string) error {
	a.client.Manager.Initialize(ctx)
	printState(a, a.client.Manager.State())

	status := a.client.Manager.Scheduler().Status()
	if status.RefreshArmed {
		a.printf("Next refresh: %s\n", status.RefreshAt.Local().Format(time.Kitchen))
	}
	if status.WarningArmed {
		a.printf("Expiry warning: %s\n", status.WarningAt.Local().Format(time.Kitchen))
	}
	return nil
}

func whoamiCommand(ctx context.Context, a *app, _ []string) error {
	if err := requireSession(ctx, a); err != nil {
		return err
	}
	u, err := a.client.API.GetUser(ctx)
	if err != nil {
		return err
	}
	a.printf("%s\n%s\n", u.DisplayName(), u.Email)
	if u.PictureURL != "" {
		a.printf("%s\n", u.PictureURL)
	}
	return nil
}

func refreshCommand(ctx context.Context, a *app, _ []string) error {
	if err := requireSession(ctx, a); err != nil {
		return err
	}
	if !a.client.Manager.RefreshToken(ctx) {
		return errors.New(a.client.Manager.State().Error)
	}
	a.printf("Session extended until %s\n", a.client.Manager.State().ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func logoutCommand(ctx context.Context, a *app, _ []string) error {
	a.client.Manager.Initialize(ctx)
	a.client.Manager.Logout(ctx)
	a.printf("Signed out\n")
	return nil
}

func watchCommand(ctx context.Context, a *app, _ []string) error {
	mgr := a.client.Manager
	defer mgr.OnChange(func(s session.State) { printState(a, s) })()
	defer mgr.OnError(func(ev session.ErrorEvent) { a.printf("! %s\n", ev.Message) })()
	defer mgr.OnWarning(func(w session.Warning) { a.printf("%s\n", w.Message) })()
	defer mgr.OnCountdown(func(d time.Duration) {
		if d%(30*time.Second) < time.Second {
			a.printf("  %s left\n", d.Truncate(time.Second))
		}
	})()

	mgr.Initialize(ctx)
	<-ctx.Done()
	return nil
}

func requireSession(ctx context.Context, a *app) error {
	a.client.Manager.Initialize(ctx)
	state := a.client.Manager.State()
	if !state.IsAuthenticated {
		if state.Error != "" {
			return errors.New(state.Error)
		}
		return errors.New("not signed in")
	}
	return nil
}

func printState(a *app, s session.State) {
	if s.IsLoading {
		return
	}
	if !s.IsAuthenticated {
		a.printf("%s\n", s.Phase)
		if s.Error != "" {
			a.printf("  %s\n", s.Error)
		}
		return
	}
	a.printf("%s as %s <%s>, expires %s\n", s.Phase, s.User.DisplayName(), s.User.Email, s.ExpiresAt.Local().Format(time.RFC1123))
}
