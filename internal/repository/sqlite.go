package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	appLog "repeatcal/internal/log"
	"repeatcal/internal/model"
)

// SQLite stores events in a single SQLite table. Batch methods run in one
// transaction.
type SQLite struct {
	db *sql.DB
}

var _ Repository = (*SQLite)(nil)

// OpenSQLite opens (and migrates) the database at path. Use ":memory:" for a
// throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	appLog.Info("sqlite repository ready", "path", path)
	return s, nil
}

func (s *SQLite) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		repeat_type TEXT NOT NULL DEFAULT 'none',
		repeat_interval INTEGER NOT NULL DEFAULT 0,
		repeat_end_date TEXT NOT NULL DEFAULT '',
		repeat_id TEXT NOT NULL DEFAULT '',
		notification_time INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_date ON events(date, start_time);
	CREATE INDEX IF NOT EXISTS idx_events_repeat_id ON events(repeat_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const selectColumns = `id, title, date, start_time, end_time, description, location, category,
	repeat_type, repeat_interval, repeat_end_date, repeat_id, notification_time`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var ev model.Event
	var repeatType string
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Date, &ev.StartTime, &ev.EndTime,
		&ev.Description, &ev.Location, &ev.Category,
		&repeatType, &ev.Repeat.Interval, &ev.Repeat.EndDate, &ev.Repeat.ID,
		&ev.NotificationTime,
	)
	ev.Repeat.Type = model.RepeatType(repeatType)
	return ev, err
}

func (s *SQLite) List(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM events ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLite) Create(ctx context.Context, ev model.Event) (model.Event, error) {
	out, err := s.CreateMany(ctx, []model.Event{ev})
	if err != nil {
		return model.Event{}, err
	}
	return out[0], nil
}

func (s *SQLite) CreateMany(ctx context.Context, evs []model.Event) ([]model.Event, error) {
	out := make([]model.Event, 0, len(evs))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, ev := range evs {
			taken := func(id string) bool { return exists(ctx, tx, id) }
			ev = assignID(ev, taken)
			if err := insert(ctx, tx, ev); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) Update(ctx context.Context, id string, ev model.Event) (model.Event, error) {
	ev.ID = id
	out, err := s.UpdateMany(ctx, []model.Event{ev})
	if err != nil {
		return model.Event{}, err
	}
	return out[0], nil
}

func (s *SQLite) UpdateMany(ctx context.Context, evs []model.Event) ([]model.Event, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, ev := range evs {
			res, err := tx.ExecContext(ctx, `UPDATE events SET
				title = ?, date = ?, start_time = ?, end_time = ?, description = ?, location = ?, category = ?,
				repeat_type = ?, repeat_interval = ?, repeat_end_date = ?, repeat_id = ?, notification_time = ?,
				updated_at = ?
				WHERE id = ?`,
				ev.Title, ev.Date, ev.StartTime, ev.EndTime, ev.Description, ev.Location, ev.Category,
				string(ev.Repeat.Type), ev.Repeat.Interval, ev.Repeat.EndDate, ev.Repeat.ID, ev.NotificationTime,
				time.Now().UTC(), ev.ID,
			)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evs, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	return s.DeleteMany(ctx, []string{id})
}

func (s *SQLite) DeleteMany(ctx context.Context, ids []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, rolling back on any error.
func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			appLog.Error("sqlite rollback failed", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func exists(ctx context.Context, tx *sql.Tx, id string) bool {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM events WHERE id = ?`, id).Scan(&n)
	return err == nil && n > 0
}

func insert(ctx context.Context, tx *sql.Tx, ev model.Event) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO events
		(id, title, date, start_time, end_time, description, location, category,
		 repeat_type, repeat_interval, repeat_end_date, repeat_id, notification_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Title, ev.Date, ev.StartTime, ev.EndTime, ev.Description, ev.Location, ev.Category,
		string(ev.Repeat.Type), ev.Repeat.Interval, ev.Repeat.EndDate, ev.Repeat.ID, ev.NotificationTime,
		time.Now().UTC(),
	)
	return err
}
