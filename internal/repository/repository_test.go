package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"repeatcal/internal/model"
)

func newEvent(id, title, date string) model.Event {
	return model.Event{
		ID:        id,
		Title:     title,
		Date:      date,
		StartTime: "09:00",
		EndTime:   "10:00",
		Repeat:    model.Repeat{Type: model.RepeatWeekly, Interval: 1, ID: "series"},
	}
}

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Repository{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestRepositoryContract(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := repo.CreateMany(ctx, []model.Event{
				newEvent("a", "one", "2024-10-15"),
				newEvent("", "two", "2024-10-22"),
				newEvent("a", "three", "2024-10-29"),
			})
			if err != nil {
				t.Fatalf("CreateMany: %v", err)
			}
			if created[0].ID != "a" {
				t.Errorf("unused client id not kept: %q", created[0].ID)
			}
			if created[1].ID == "" || created[2].ID == "a" {
				t.Errorf("ids not assigned: %q, %q", created[1].ID, created[2].ID)
			}

			single, err := repo.Create(ctx, model.Event{Title: "solo", Date: "2024-11-01", StartTime: "08:00", EndTime: "08:30"})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if single.Repeat != model.NoRepeat {
				t.Errorf("empty repeat not normalized: %+v", single.Repeat)
			}

			list, err := repo.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 4 || list[0].Title != "one" || list[3].Title != "solo" {
				t.Fatalf("List = %+v", list)
			}
			if list[0].Repeat != created[0].Repeat {
				t.Errorf("repeat not persisted: %+v", list[0].Repeat)
			}

			edited := created[1]
			edited.Title = "two!"
			edited.Repeat = model.NoRepeat
			if _, err := repo.Update(ctx, edited.ID, edited); err != nil {
				t.Fatalf("Update: %v", err)
			}
			if _, err := repo.Update(ctx, "missing", edited); !errors.Is(err, ErrNotFound) {
				t.Errorf("Update(missing) = %v", err)
			}

			// A batch with one unknown id applies nothing.
			bad := created[0]
			bad.Title = "should not stick"
			ghost := newEvent("ghost", "ghost", "2024-12-01")
			if _, err := repo.UpdateMany(ctx, []model.Event{bad, ghost}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("UpdateMany with ghost = %v", err)
			}
			if err := repo.DeleteMany(ctx, []string{created[0].ID, "ghost"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("DeleteMany with ghost = %v", err)
			}

			list, _ = repo.List(ctx)
			if list[0].Title != "one" || len(list) != 4 {
				t.Fatalf("failed batch left changes: %+v", list)
			}
			if list[1].Title != "two!" || list[1].Repeat != model.NoRepeat {
				t.Errorf("single update lost: %+v", list[1])
			}

			if err := repo.DeleteMany(ctx, []string{created[0].ID, created[2].ID}); err != nil {
				t.Fatalf("DeleteMany: %v", err)
			}
			if err := repo.Delete(ctx, single.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := repo.Delete(ctx, single.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete = %v", err)
			}

			list, _ = repo.List(ctx)
			if len(list) != 1 || list[0].ID != created[1].ID {
				t.Errorf("remaining = %+v", list)
			}
		})
	}
}

func TestNewMemorySeed(t *testing.T) {
	m := NewMemory(newEvent("x", "seeded", "2024-01-01"), newEvent("x", "dup", "2024-01-02"))
	list, _ := m.List(context.Background())
	if len(list) != 2 || list[0].ID != "x" || list[1].ID == "x" {
		t.Errorf("seeded list = %+v", list)
	}
}
