package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repeatcal/internal/config"
	"repeatcal/internal/repository"
	"repeatcal/internal/web"
)

type harness struct {
	t      *testing.T
	config string
	env    string
	repo   *repository.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := repository.NewMemory()
	srv := httptest.NewServer(web.NewServer(config.DefaultConfig(), repo).Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Remote.URL = srv.URL
	path := filepath.Join(dir, "config.yaml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, config: path, env: filepath.Join(dir, "missing.env"), repo: repo}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	a := &app{out: &out}
	full := append([]string{"repeatcal", "--config", h.config, "--env-file", h.env}, args...)
	err := newCommand(a).Run(context.Background(), full)
	return out.String(), err
}

func TestAddListEditDelete(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("add", "--title", "Standup", "--date", "2024-10-15", "--start", "09:00", "--end", "09:15",
		"--repeat", "weekly", "--until", "2024-10-29")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "created 3 instance(s)") {
		t.Errorf("add output = %q", out)
	}

	events, _ := h.repo.List(context.Background())
	if len(events) != 3 {
		t.Fatalf("repo has %d events", len(events))
	}

	if _, err := h.run("edit", "--title", "Moved", events[1].ID); err != nil {
		t.Fatal(err)
	}
	out, err = h.run("list", "--search", "moved")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "\n") != 1 || strings.Contains(out, "[weekly") {
		t.Errorf("detached instance listing = %q", out)
	}

	if _, err := h.run("edit", "--series", "--location", "Room 4", events[0].ID); err != nil {
		t.Fatal(err)
	}
	out, _ = h.run("list", "--month", "--date", "2024-10-01")
	if strings.Count(out, "Room 4") != 2 {
		t.Errorf("series edit listing = %q", out)
	}

	if _, err := h.run("delete", "--series", events[0].ID); err != nil {
		t.Fatal(err)
	}
	remaining, _ := h.repo.List(context.Background())
	if len(remaining) != 1 || remaining[0].Title != "Moved" {
		t.Errorf("remaining = %+v", remaining)
	}
}

func TestAddRejectsOverlapWithoutForce(t *testing.T) {
	h := newHarness(t)

	if _, err := h.run("add", "--title", "A", "--date", "2024-10-15", "--start", "09:00", "--end", "10:00"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.run("add", "--title", "B", "--date", "2024-10-15", "--start", "09:30", "--end", "10:30"); err == nil {
		t.Fatal("expected overlap error")
	}
	if _, err := h.run("add", "--title", "B", "--date", "2024-10-15", "--start", "09:30", "--end", "10:30", "--force"); err != nil {
		t.Fatal(err)
	}
	events, _ := h.repo.List(context.Background())
	if len(events) != 2 {
		t.Errorf("len = %d", len(events))
	}
}

func TestAddChecksEveryOccurrenceForOverlap(t *testing.T) {
	h := newHarness(t)

	if _, err := h.run("add", "--title", "Review", "--date", "2024-10-22", "--start", "09:00", "--end", "10:00"); err != nil {
		t.Fatal(err)
	}
	out, err := h.run("add", "--title", "Standup", "--date", "2024-10-15", "--start", "09:30", "--end", "09:45",
		"--repeat", "weekly", "--until", "2024-10-29")
	if err == nil {
		t.Fatal("expected overlap on the second occurrence")
	}
	if !strings.Contains(out, "Review") {
		t.Errorf("overlap listing = %q", out)
	}
	events, _ := h.repo.List(context.Background())
	if len(events) != 1 {
		t.Errorf("series created despite overlap: %d events", len(events))
	}
}

func TestAddZeroIntervalNeverReachesServer(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("add", "--title", "x", "--date", "2024-10-15", "--repeat", "weekly", "--interval", "0"); err == nil {
		t.Fatal("expected validation error")
	}
	events, _ := h.repo.List(context.Background())
	if len(events) != 0 {
		t.Errorf("events created: %+v", events)
	}
}

func TestImportExport(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	feed := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//t//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:r@example.com\r\nSUMMARY:Review\r\n" +
		"DTSTART:20241015T090000Z\r\nDTEND:20241015T100000Z\r\n" +
		"RRULE:FREQ=DAILY;UNTIL=20241017T090000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	in := filepath.Join(dir, "in.ics")
	if err := os.WriteFile(in, []byte(feed), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := h.run("import", in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "imported 1 event(s) as 3 instance(s)") {
		t.Errorf("import output = %q", out)
	}

	exported := filepath.Join(dir, "out.ics")
	if _, err := h.run("export", exported); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "BEGIN:VEVENT"); n != 3 {
		t.Errorf("exported %d VEVENTs", n)
	}
}
