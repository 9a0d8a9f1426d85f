package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"standupbot/internal/standup"
	"standupbot/pkg/logx"
)

// fileStore keeps state in memory and persists it next to cfg.Path.
//
// Files:
//   - <prefix>.state.json          (rooms and entries, rewritten on change)
//   - <prefix>.audit.jsonl         (append-only JSON Lines)
//   - <prefix>.dedup.snapshot.json (periodic snapshot)
//   - <prefix>.dedup.journal.jsonl (append-only journal)
//
// The dedup journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex
	st *state

	statePath string
	auditPath string
	auditFile *os.File

	dedupSnapshotPath string
	dedupJournalFile  *os.File
	dedup             map[string]int64 // unix milli
	dedupWrites       int
}

type dedupRecord struct {
	Key   string `json:"key"`
	Until int64  `json:"until"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:               log,
		st:                newState(),
		statePath:         prefix + ".state.json",
		auditPath:         prefix + ".audit.jsonl",
		dedupSnapshotPath: prefix + ".dedup.snapshot.json",
		dedup:             map[string]int64{},
	}
	if err := s.loadState(); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(s.auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	journalPath := prefix + ".dedup.journal.jsonl"
	_ = loadDedupSnapshot(s.dedupSnapshotPath, s.dedup)
	_ = replayDedupJournal(journalPath, s.dedup)
	pruneExpiredDedup(s.dedup, time.Now())

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}
	s.auditFile = af
	s.dedupJournalFile = jf

	log.Info("file storage opened",
		logx.String("state", s.statePath),
		logx.Int("rooms", len(s.st.rooms)),
		logx.Int("entries", len(s.st.entries)),
	)
	return s, nil
}

func (s *fileStore) loadState() error {
	b, err := os.ReadFile(s.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var f stateFile
	if err := json.Unmarshal(b, &f); err != nil {
		return errors.New("decode " + s.statePath + ": " + err.Error())
	}
	s.st.fromFile(f)
	return nil
}

// mutate applies fn and persists the result. On a write failure the
// in-memory state is rolled back.
func (s *fileStore) mutate(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	prev := s.st.clone()
	if err := fn(s.st); err != nil {
		return err
	}
	if err := s.writeStateLocked(); err != nil {
		s.st = prev
		return err
	}
	return nil
}

func (s *fileStore) read(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return fn(s.st)
}

func (s *fileStore) writeStateLocked() error {
	b, err := json.MarshalIndent(s.st.toFile(), "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.statePath, b)
}

func writeFileAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) InsertRoom(_ context.Context, r standup.Room) error {
	return wrapErr("insert room", s.mutate(func(st *state) error { return st.insertRoom(r) }))
}

func (s *fileStore) GetRoom(_ context.Context, id int64) (out standup.Room, err error) {
	err = s.read(func(st *state) error {
		out, err = st.getRoom(id)
		return err
	})
	return out, wrapErr("get room", err)
}

func (s *fileStore) UpdateRoom(_ context.Context, r standup.Room) error {
	return wrapErr("update room", s.mutate(func(st *state) error { return st.updateRoom(r) }))
}

func (s *fileStore) DeleteRoom(_ context.Context, id int64) error {
	return wrapErr("delete room", s.mutate(func(st *state) error { return st.deleteRoom(id) }))
}

func (s *fileStore) ListRooms(context.Context) (out []standup.Room, err error) {
	err = s.read(func(st *state) error {
		out = st.listRooms()
		return nil
	})
	return out, wrapErr("list rooms", err)
}

func (s *fileStore) CreateEntry(_ context.Context, e standup.Entry) error {
	return wrapErr("create entry", s.mutate(func(st *state) error { return st.createEntry(e) }))
}

func (s *fileStore) MostRecentFor(_ context.Context, userID, channelID int64) (out standup.Entry, ok bool, err error) {
	err = s.read(func(st *state) error {
		out, ok = st.mostRecentFor(userID, channelID)
		return nil
	})
	return out, ok, wrapErr("most recent entry", err)
}

func (s *fileStore) ExpiredBefore(_ context.Context, t time.Time) (out []standup.Entry, err error) {
	err = s.read(func(st *state) error {
		out = st.expiredBefore(t)
		return nil
	})
	return out, wrapErr("expired entries", err)
}

func (s *fileStore) DeleteEntry(_ context.Context, id string) error {
	return wrapErr("delete entry", s.mutate(func(st *state) error { return st.deleteEntry(id) }))
}

func (s *fileStore) CountFor(_ context.Context, userID, channelID int64) (n int, err error) {
	err = s.read(func(st *state) error {
		n = st.countFor(userID, channelID)
		return nil
	})
	return n, wrapErr("count entries", err)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.auditFile != nil {
		err1 = s.auditFile.Close()
		s.auditFile = nil
	}
	if s.dedupJournalFile != nil {
		err2 = s.dedupJournalFile.Close()
		s.dedupJournalFile = nil
	}
	return errors.Join(err1, err2)
}

func (s *fileStore) AppendAudit(_ context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) RecentAudit(_ context.Context, limit int) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil, ErrClosed
	}
	f, err := os.Open(s.auditPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		all = append(all, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lastAudit(all, limit), nil
}

func (s *fileStore) PutDedup(_ context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	ms := until.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedupJournalFile == nil {
		return ErrClosed
	}
	s.dedup[key] = ms

	if err := json.NewEncoder(s.dedupJournalFile).Encode(dedupRecord{Key: key, Until: ms}); err != nil {
		return err
	}
	s.dedupWrites++
	if s.dedupWrites%1000 == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("dedup compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) GetDedup(_ context.Context, key string) (time.Time, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.dedup[key]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *fileStore) compactLocked() error {
	pruneExpiredDedup(s.dedup, time.Now())
	b, err := json.Marshal(s.dedup)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.dedupSnapshotPath, b); err != nil {
		return err
	}
	if err := s.dedupJournalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.dedupJournalFile.Seek(0, 2)
	return err
}

func loadDedupSnapshot(path string, out map[string]int64) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var m map[string]int64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayDedupJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r dedupRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Key == "" {
			continue
		}
		out[r.Key] = r.Until
	}
	return sc.Err()
}
