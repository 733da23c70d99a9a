package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nhle/jira-import/internal/app"
	"github.com/nhle/jira-import/internal/credential"
	"github.com/nhle/jira-import/internal/job"
	"github.com/nhle/jira-import/internal/model"
)

func main() {
	flags := pflag.NewFlagSet("jira-import", pflag.ContinueOnError)
	configPath := flags.String("config", model.DefaultConfigPath(), "path to the configuration file")
	flags.String("project", "", "test project directory (overrides project.dir)")
	flags.String("base-url", "", "JIRA base URL (overrides jira.base_url)")
	login := flags.Bool("login", false, "prompt for a JIRA token, verify it and store it in the keyring")
	history := flags.Int("history", 0, "print the last N import runs and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := model.LoadConfig(*configPath, flags)
	if err != nil {
		fail("loading config", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("invalid config", err)
	}

	logFile, err := app.OpenLog(cfg)
	if err != nil {
		fail("opening log", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := credential.Open()
	if err != nil {
		fail("opening keyring", err)
	}

	if *login {
		user, err := app.Login(ctx, cfg, creds, nil)
		if errors.Is(err, model.ErrCanceled) {
			return
		}
		if err != nil {
			fail("login", err)
		}
		fmt.Printf("Logged in to %s as %s.\n", cfg.Jira.BaseURL, user)
		return
	}

	a, err := app.New(ctx, cfg, creds, os.Stdout)
	if err != nil {
		fail("starting", err)
	}
	defer a.Close()

	if *history > 0 {
		if err := a.History(ctx, *history); err != nil {
			fail("reading history", err)
		}
		return
	}

	st, err := a.Run(ctx)
	if err != nil {
		a.Close()
		fail("import", err)
	}
	if st.Code == job.Error {
		a.Close()
		os.Exit(1)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
	os.Exit(1)
}
