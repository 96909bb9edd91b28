package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "sdkbridge/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendEvent(ctx context.Context, e EventRecord) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	var v sql.NullFloat64
	if e.ValueToSum != nil {
		v = sql.NullFloat64{Float64: *e.ValueToSum, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(at_ms, kind, value_to_sum, params) VALUES(?,?,?,?)`,
		e.At.UnixMilli(), e.Kind, v, nullStr(e.ParamsJSON),
	)
	return err
}

func (s *sqliteStore) AppendLink(ctx context.Context, l LinkRecord) error {
	if l.At.IsZero() {
		l.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO links(at_ms, url, source) VALUES(?,?,?)`,
		l.At.UnixMilli(), l.URL, l.Source,
	)
	return err
}

func (s *sqliteStore) LastLink(ctx context.Context) (LinkRecord, bool, error) {
	var (
		ms  int64
		rec LinkRecord
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT at_ms, url, source FROM links ORDER BY id DESC LIMIT 1`,
	).Scan(&ms, &rec.URL, &rec.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return LinkRecord{}, false, nil
	}
	if err != nil {
		return LinkRecord{}, false, err
	}
	rec.At = time.UnixMilli(ms)
	return rec, true, nil
}

func (s *sqliteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	cut := before.UnixMilli()
	total := 0
	for _, q := range []string{
		`DELETE FROM events WHERE at_ms < ?`,
		`DELETE FROM links WHERE at_ms < ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, cut)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	if total > 0 {
		s.log.Debug("sqlite store pruned", logx.Int("removed", total), logx.Time("before", before))
	}
	return total, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
