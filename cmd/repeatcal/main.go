package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"repeatcal/internal/calendar"
	"repeatcal/internal/config"
	"repeatcal/internal/gateway"
	appLog "repeatcal/internal/log"
	"repeatcal/internal/recur"
)

// app is the state shared by every subcommand, built in Before.
type app struct {
	cfg *config.Config
	loc *time.Location
	mgr *calendar.Manager
	out io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{out: os.Stdout}
	if err := newCommand(a).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "repeatcal",
		Usage: "manage single and recurring calendar events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to config file",
				Value: config.DefaultClientPath(),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "optional dotenv file with REPEATCAL_* overrides",
				Value: ".env",
			},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			listCommand(a),
			addCommand(a),
			editCommand(a),
			deleteCommand(a),
			importCommand(a),
			exportCommand(a),
			remindCommand(a),
		},
	}
}

func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := godotenv.Load(cmd.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to load env file", "path", cmd.String("env-file"), "err", err.Error())
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
		loc = time.Local
	}

	opts := []gateway.Option{gateway.WithTimeout(time.Duration(cfg.Remote.TimeoutSeconds) * time.Second)}
	if cfg.BasicAuth != nil {
		opts = append(opts, gateway.WithBasicAuth(cfg.BasicAuth.Username, cfg.BasicAuth.Password))
	}

	a.cfg = cfg
	a.loc = loc
	a.mgr = calendar.NewManager(
		gateway.NewClient(cfg.Remote.URL, opts...),
		nil,
		calendar.WithNotifier(calendar.NotifierFunc(a.printNotice)),
		calendar.WithExpandConfig(recur.ExpandConfig{
			HorizonDays:    cfg.Recurrence.HorizonDays,
			MaxOccurrences: cfg.Recurrence.MaxOccurrences,
		}),
	)
	return ctx, nil
}

func (a *app) printNotice(n calendar.Notice) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Status, n.Title)
}
