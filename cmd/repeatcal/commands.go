package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"repeatcal/internal/gateway"
	"repeatcal/internal/ics"
	"repeatcal/internal/model"
	"repeatcal/internal/notify"
	"repeatcal/internal/recur"
	"repeatcal/internal/store"
)

func listCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list event instances",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "week", Usage: "only the week containing --date"},
			&cli.BoolFlag{Name: "month", Usage: "only the month containing --date"},
			&cli.StringFlag{Name: "date", Usage: "anchor day for --week/--month (YYYY-MM-DD, default today)"},
			&cli.StringFlag{Name: "search", Usage: "match title, description or location"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := a.mgr.FetchEvents(ctx); err != nil {
				return err
			}
			st := a.mgr.Store()

			day, err := a.anchorDay(cmd.String("date"))
			if err != nil {
				return err
			}

			var events []model.Event
			switch {
			case cmd.Bool("week"):
				events = st.Between(store.WeekRange(day, store.ParseWeekStart(a.cfg.WeekStart)))
			case cmd.Bool("month"):
				events = st.Between(store.MonthRange(day))
			default:
				events = st.Events()
			}

			if term := cmd.String("search"); term != "" {
				matched := make(map[string]bool)
				for _, ev := range st.Search(term) {
					matched[ev.ID] = true
				}
				filtered := events[:0]
				for _, ev := range events {
					if matched[ev.ID] {
						filtered = append(filtered, ev)
					}
				}
				events = filtered
			}

			if len(events) == 0 {
				fmt.Fprintln(a.out, "no events")
				return nil
			}
			for _, ev := range events {
				fmt.Fprintln(a.out, formatEvent(ev))
			}
			return nil
		},
	}
}

// eventFlags are shared by add and edit.
func eventFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Usage: "event title"},
		&cli.StringFlag{Name: "date", Usage: "YYYY-MM-DD (default today)"},
		&cli.StringFlag{Name: "start", Usage: "start time HH:MM", Value: "09:00"},
		&cli.StringFlag{Name: "end", Usage: "end time HH:MM", Value: "10:00"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "location"},
		&cli.StringFlag{Name: "category"},
		&cli.IntFlag{Name: "notify", Usage: "reminder lead time in minutes", Value: 10},
	}
}

func addCommand(a *app) *cli.Command {
	flags := append(eventFlags(),
		&cli.StringFlag{Name: "repeat", Usage: "none, daily, weekly, monthly or yearly", Value: string(model.RepeatNone)},
		&cli.IntFlag{Name: "interval", Usage: "repeat every N units", Value: 1},
		&cli.StringFlag{Name: "until", Usage: "last possible date of the series (YYYY-MM-DD)"},
		&cli.BoolFlag{Name: "force", Usage: "create even when any occurrence overlaps other events"},
	)
	return &cli.Command{
		Name:  "add",
		Usage: "create an event or a recurring series",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.String("title") == "" {
				return &model.ValidationError{Field: "title", Msg: "title is required"}
			}
			if err := a.mgr.FetchEvents(ctx); err != nil {
				return err
			}

			ev := model.Event{Repeat: model.NoRepeat}
			if err := a.applyEventFlags(cmd, &ev, true); err != nil {
				return err
			}
			if rt := model.RepeatType(cmd.String("repeat")); rt != model.RepeatNone {
				ev.Repeat = model.Repeat{
					Type:     rt,
					Interval: cmd.Int("interval"),
					EndDate:  cmd.String("until"),
				}
			}

			if overlaps := a.overlapping(ev); len(overlaps) > 0 && !cmd.Bool("force") {
				fmt.Fprintln(a.out, "overlaps with:")
				for _, o := range overlaps {
					fmt.Fprintln(a.out, "  "+formatEvent(o))
				}
				return fmt.Errorf("event overlaps %d existing events; pass --force to create it anyway", len(overlaps))
			}

			created, err := a.mgr.Create(ctx, ev)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created %d instance(s)\n", len(created))
			return nil
		},
	}
}

func editCommand(a *app) *cli.Command {
	flags := append(eventFlags(),
		&cli.BoolFlag{Name: "series", Usage: "apply to every instance of the series instead of detaching this one"},
	)
	return &cli.Command{
		Name:      "edit",
		Usage:     "edit one instance, or its whole series with --series",
		ArgsUsage: "ID",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("edit: event id is required")
			}
			if err := a.mgr.FetchEvents(ctx); err != nil {
				return err
			}
			ev, ok := a.mgr.Store().Get(id)
			if !ok {
				return &gateway.NotFoundError{Op: "edit", ID: id}
			}
			if err := a.applyEventFlags(cmd, &ev, false); err != nil {
				return err
			}

			if cmd.Bool("series") {
				updated, err := a.mgr.UpdateRepeatingEvents(ctx, ev)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "updated %d instance(s)\n", len(updated))
				return nil
			}
			saved, err := a.mgr.SaveEvent(ctx, ev, true)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, formatEvent(saved))
			return nil
		},
	}
}

func deleteCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete one instance, or its whole series with --series",
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "series", Usage: "delete every instance of the series"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("delete: event id is required")
			}
			if !cmd.Bool("series") {
				return a.mgr.DeleteEvent(ctx, id)
			}
			if err := a.mgr.FetchEvents(ctx); err != nil {
				return err
			}
			return a.mgr.DeleteRepeatingEvents(ctx, id)
		},
	}
}

func importCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "create events from an iCalendar file",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("import: file is required")
			}
			body, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			seeds, err := ics.Parse(body, a.loc)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			total := 0
			for _, seed := range seeds {
				created, err := a.mgr.Create(ctx, seed)
				if err != nil {
					return fmt.Errorf("import %q: %w", seed.Title, err)
				}
				total += len(created)
			}
			fmt.Fprintf(a.out, "imported %d event(s) as %d instance(s)\n", len(seeds), total)
			return nil
		},
	}
}

func exportCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "write every instance as iCalendar to FILE or stdout",
		ArgsUsage: "[FILE]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := a.mgr.FetchEvents(ctx); err != nil {
				return err
			}
			body := ics.Export(a.mgr.Events(), a.loc, time.Now())
			if path := cmd.Args().First(); path != "" {
				return os.WriteFile(path, []byte(body), 0o644)
			}
			_, err := fmt.Fprint(a.out, body)
			return err
		},
	}
}

func remindCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "print reminders as events approach, until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			source := func(ctx context.Context) ([]model.Event, error) {
				if err := a.mgr.FetchEvents(ctx); err != nil {
					return nil, err
				}
				return a.mgr.Events(), nil
			}
			sink := notify.SinkFunc(func(r notify.Reminder) {
				fmt.Fprintf(a.out, "%s  %s\n", time.Now().In(a.loc).Format(model.TimeLayout), r.Message)
			})

			sched, err := notify.NewScheduler(a.cfg.Reminders.Cron, a.loc, source, sink)
			if err != nil {
				return err
			}
			sched.Check(ctx)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}
}

// overlapping checks every occurrence ev expands to. An invalid rule yields
// nothing; creation reports it.
func (a *app) overlapping(ev model.Event) []model.Event {
	res, err := recur.Expand(ev, recur.ExpandConfig{
		HorizonDays:    a.cfg.Recurrence.HorizonDays,
		MaxOccurrences: a.cfg.Recurrence.MaxOccurrences,
	})
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []model.Event
	for _, occ := range res.Occurrences {
		for _, o := range a.mgr.Overlapping(occ) {
			if !seen[o.ID] {
				seen[o.ID] = true
				out = append(out, o)
			}
		}
	}
	return out
}

// applyEventFlags copies flags onto ev. With all set, defaults apply too;
// otherwise only flags given on the command line change ev.
func (a *app) applyEventFlags(cmd *cli.Command, ev *model.Event, all bool) error {
	str := func(name string, dst *string) {
		if all || cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
	str("title", &ev.Title)
	str("start", &ev.StartTime)
	str("end", &ev.EndTime)
	str("description", &ev.Description)
	str("location", &ev.Location)
	str("category", &ev.Category)
	if all || cmd.IsSet("notify") {
		ev.NotificationTime = cmd.Int("notify")
	}
	if all || cmd.IsSet("date") {
		day, err := a.anchorDay(cmd.String("date"))
		if err != nil {
			return err
		}
		ev.Date = model.FormatDate(day)
	}
	return nil
}

// anchorDay parses s as YYYY-MM-DD, or returns today in the configured zone.
func (a *app) anchorDay(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().In(a.loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
	}
	return day, nil
}

func formatEvent(ev model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s-%s  %s", ev.Date, ev.StartTime, ev.EndTime, ev.Title)
	if ev.Location != "" {
		fmt.Fprintf(&b, " @ %s", ev.Location)
	}
	if ev.Repeat.IsRecurring() {
		fmt.Fprintf(&b, "  [%s/%d", ev.Repeat.Type, ev.Repeat.Interval)
		if ev.Repeat.EndDate != "" {
			fmt.Fprintf(&b, " until %s", ev.Repeat.EndDate)
		}
		b.WriteString("]")
	}
	fmt.Fprintf(&b, "  (%s)", ev.ID)
	return b.String()
}
