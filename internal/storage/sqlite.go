package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"standupbot/internal/standup"
	"standupbot/pkg/logx"
)

//go:embed schema.sql
var schemaSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	log.Info("sqlite storage opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) InsertRoom(ctx context.Context, r standup.Room) error {
	roles, err := encodeRoles(r.RoleIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms(channel_id, role_ids, cooldown_ms, created_at) VALUES(?,?,?,?)
		 ON CONFLICT(channel_id) DO NOTHING`,
		r.ChannelID, roles, r.Cooldown.Milliseconds(), r.CreatedAt.UnixNano(),
	)
	return wrapErr("insert room", affected(res, err, standup.ErrAlreadyExists))
}

func (s *sqliteStore) GetRoom(ctx context.Context, id int64) (standup.Room, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT channel_id, role_ids, cooldown_ms, created_at FROM rooms WHERE channel_id = ?`, id)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = standup.ErrNotFound
	}
	return r, wrapErr("get room", err)
}

func (s *sqliteStore) UpdateRoom(ctx context.Context, r standup.Room) error {
	roles, err := encodeRoles(r.RoleIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET role_ids = ?, cooldown_ms = ? WHERE channel_id = ?`,
		roles, r.Cooldown.Milliseconds(), r.ChannelID,
	)
	return wrapErr("update room", affected(res, err, standup.ErrNotFound))
}

func (s *sqliteStore) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE channel_id = ?`, id)
	return wrapErr("delete room", affected(res, err, standup.ErrNotFound))
}

func (s *sqliteStore) ListRooms(ctx context.Context) ([]standup.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, role_ids, cooldown_ms, created_at FROM rooms ORDER BY channel_id`)
	if err != nil {
		return nil, wrapErr("list rooms", err)
	}
	defer rows.Close()

	out := []standup.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, wrapErr("list rooms", err)
		}
		out = append(out, r)
	}
	return out, wrapErr("list rooms", rows.Err())
}

func (s *sqliteStore) CreateEntry(ctx context.Context, e standup.Entry) error {
	roles, err := encodeRoles(e.RoleIDs)
	if err != nil {
		return err
	}
	created, err := nanos("created_at", e.CreatedAt)
	if err != nil {
		return wrapErr("create entry", err)
	}
	expires, err := nanos("expires_at", e.ExpiresAt)
	if err != nil {
		return wrapErr("create entry", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries(id, channel_id, user_id, role_ids, created_at, expires_at) VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		e.ID, e.ChannelID, e.UserID, roles, created, expires,
	)
	return wrapErr("create entry", affected(res, err, standup.ErrAlreadyExists))
}

const entryColumns = `id, channel_id, user_id, role_ids, created_at, expires_at`

func (s *sqliteStore) MostRecentFor(ctx context.Context, userID, channelID int64) (standup.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE user_id = ? AND channel_id = ?
		 ORDER BY created_at DESC LIMIT 1`, userID, channelID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return standup.Entry{}, false, nil
	}
	if err != nil {
		return standup.Entry{}, false, wrapErr("most recent entry", err)
	}
	return e, true, nil
}

func (s *sqliteStore) ExpiredBefore(ctx context.Context, t time.Time) ([]standup.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE expires_at <= ? ORDER BY expires_at, id`, clampNanos(t))
	if err != nil {
		return nil, wrapErr("expired entries", err)
	}
	defer rows.Close()

	var out []standup.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrapErr("expired entries", err)
		}
		out = append(out, e)
	}
	return out, wrapErr("expired entries", rows.Err())
}

func (s *sqliteStore) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	return wrapErr("delete entry", affected(res, err, standup.ErrNotFound))
}

func (s *sqliteStore) CountFor(ctx context.Context, userID, channelID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE user_id = ? AND channel_id = ?`, userID, channelID).Scan(&n)
	return n, wrapErr("count entries", err)
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, actor_username, chat_id, thread_id, action, target, ok, err, took_ms, meta)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.ActorID, nullStr(e.ActorUsername), e.ChatID, e.ThreadID,
		e.Action, nullStr(e.Target), e.OK, nullStr(e.Error), e.TookMS, nullStr(e.Meta),
	)
	return wrapErr("append audit", err)
}

func (s *sqliteStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, actor_id, actor_username, chat_id, thread_id, action, target, ok, err, took_ms, meta
		 FROM audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrapErr("recent audit", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e                          AuditEntry
			at                         string
			user, target, errStr, meta sql.NullString
		)
		if err := rows.Scan(&at, &e.ActorID, &user, &e.ChatID, &e.ThreadID, &e.Action, &target, &e.OK, &errStr, &e.TookMS, &meta); err != nil {
			return nil, wrapErr("recent audit", err)
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.ActorUsername, e.Target, e.Error, e.Meta = user.String, target.String, errStr.String, meta.String
		out = append(out, e)
	}
	return out, wrapErr("recent audit", rows.Err())
}

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until=excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.pruneExpired(pctx)
		cancel()
	}
	return wrapErr("put dedup", err)
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM dedup WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, wrapErr("get dedup", err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) pruneExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until < ?`, time.Now().UnixMilli())
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(sc scanner) (standup.Room, error) {
	var (
		r          standup.Room
		roles      string
		cooldownMS int64
		created    int64
	)
	if err := sc.Scan(&r.ChannelID, &roles, &cooldownMS, &created); err != nil {
		return standup.Room{}, err
	}
	ids, err := decodeRoles(roles)
	if err != nil {
		return standup.Room{}, err
	}
	r.RoleIDs = ids
	r.Cooldown = time.Duration(cooldownMS) * time.Millisecond
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}

// Timestamps are stored as unix nanoseconds, which only cover 1678..2262.
var (
	minNanoTime = time.Unix(0, math.MinInt64)
	maxNanoTime = time.Unix(0, math.MaxInt64)
)

func nanos(field string, t time.Time) (int64, error) {
	if t.Before(minNanoTime) || t.After(maxNanoTime) {
		return 0, fmt.Errorf("%s %s: %w", field, t.UTC().Format(time.RFC3339), ErrTimeRange)
	}
	return t.UnixNano(), nil
}

func clampNanos(t time.Time) int64 {
	switch {
	case t.Before(minNanoTime):
		return math.MinInt64
	case t.After(maxNanoTime):
		return math.MaxInt64
	}
	return t.UnixNano()
}

func scanEntry(sc scanner) (standup.Entry, error) {
	var (
		e                standup.Entry
		roles            string
		created, expires int64
	)
	if err := sc.Scan(&e.ID, &e.ChannelID, &e.UserID, &roles, &created, &expires); err != nil {
		return standup.Entry{}, err
	}
	ids, err := decodeRoles(roles)
	if err != nil {
		return standup.Entry{}, err
	}
	e.RoleIDs = ids
	e.CreatedAt = time.Unix(0, created).UTC()
	e.ExpiresAt = time.Unix(0, expires).UTC()
	return e, nil
}

func encodeRoles(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

func decodeRoles(s string) ([]int64, error) {
	out := []int64{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode role ids: %w", err)
	}
	return out, nil
}

// affected maps a write that touched no rows to none.
func affected(res sql.Result, err error, none error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
