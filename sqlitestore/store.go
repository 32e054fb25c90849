// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-loopprof"
	"github.com/joeycumines/go-loopprof/internal/batch"
	"github.com/joeycumines/go-utilpkg/jsonenc"
	"github.com/joeycumines/logiface"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrClosed is returned by operations on a closed [Store].
var ErrClosed = errors.New("sqlitestore: closed")

// Record is a persisted event.
type Record struct {
	SessionID string
	ID        uint64
	// ParentID is 0 for root events.
	ParentID uint64
	Kind     string
	Status   string
	// Args holds each argument rendered with [loopprof.FormatArg].
	Args []string
	// Result is the rendered result, or empty if there was none.
	Result    string
	Error     string
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration is the time between StartedAt and EndedAt.
func (r *Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Store persists the terminal events of attached proxies.
type Store struct {
	db     *sql.DB
	logger *logiface.Logger[logiface.Event]
	config batch.BatcherConfig
	closed atomic.Bool

	// batcherMu guards batcher, which is replaced on each Flush
	batcherMu sync.RWMutex
	batcher   *batch.Batcher[*Record]

	// mu guards writeErr
	mu       sync.Mutex
	writeErr error
}

// Open opens (creating if necessary) the database at path, which may be
// ":memory:".
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open database: %w", err)
	}
	// single writer, and required for :memory:, which is per connection
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: cfg.logger,
		config: batch.BatcherConfig{
			MaxSize:       cfg.batchSize,
			FlushInterval: cfg.flushInterval,
			// one transaction at a time, in order
			MaxConcurrency: 1,
		},
	}
	s.batcher = s.newBatcher()

	return s, nil
}

func (s *Store) newBatcher() *batch.Batcher[*Record] {
	config := s.config
	return batch.NewBatcher[*Record](&config, s.insert)
}

func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("sqlitestore: enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			session_id TEXT NOT NULL,
			id INTEGER NOT NULL,
			parent_id INTEGER,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			args TEXT NOT NULL,
			result TEXT NOT NULL,
			error TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			PRIMARY KEY (session_id, id)
		)
	`); err != nil {
		return fmt.Errorf("sqlitestore: create table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_events_kind
		ON events(session_id, kind)
	`); err != nil {
		return fmt.Errorf("sqlitestore: create index: %w", err)
	}

	return nil
}

// Attach subscribes the store to the proxy's completed and failed topics.
// Each terminal event is snapshotted by the listener, then queued for the
// background writer.
func (s *Store) Attach(p *loopprof.Proxy) (detach func(), err error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	sessionID := p.SessionID()
	listener := func(ev *loopprof.Event) {
		s.enqueue(newRecord(sessionID, ev))
	}

	var unsubscribes []func()
	detach = func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
	for _, topic := range [...]loopprof.Topic{loopprof.TopicCompleted, loopprof.TopicFailed} {
		unsubscribe, err := p.Subscribe(topic, listener)
		if err != nil {
			detach()
			return nil, err
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}

	return detach, nil
}

func (s *Store) enqueue(rec *Record) {
	s.batcherMu.RLock()
	_, err := s.batcher.Submit(context.Background(), rec)
	s.batcherMu.RUnlock()
	if err != nil {
		s.logger.Warning().
			Str(`session`, rec.SessionID).
			Uint64(`id`, rec.ID).
			Err(err).
			Log(`sqlitestore: dropped event`)
	}
}

// Flush writes any queued rows, returning the first write error since the
// previous Flush, if any. Rows still queued when ctx is canceled are
// dropped.
func (s *Store) Flush(ctx context.Context) error {
	s.batcherMu.Lock()
	if s.closed.Load() {
		s.batcherMu.Unlock()
		return ErrClosed
	}
	// drain the current batcher, new rows go to its replacement
	batcher := s.batcher
	s.batcher = s.newBatcher()
	s.batcherMu.Unlock()

	err := batcher.Shutdown(ctx)

	s.mu.Lock()
	writeErr := s.writeErr
	s.writeErr = nil
	s.mu.Unlock()

	if writeErr != nil {
		return writeErr
	}
	return err
}

// Close writes any queued rows, then closes the database. Events published
// after Close are dropped.
func (s *Store) Close() error {
	s.batcherMu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.batcherMu.Unlock()
		return nil
	}
	batcher := s.batcher
	s.batcherMu.Unlock()

	err := batcher.Shutdown(context.Background())

	s.mu.Lock()
	err = errors.Join(err, s.writeErr)
	s.writeErr = nil
	s.mu.Unlock()

	if e := s.db.Close(); e != nil {
		err = errors.Join(err, fmt.Errorf("sqlitestore: close database: %w", e))
	}

	return err
}

// insert writes a batch of rows in a single transaction.
func (s *Store) insert(ctx context.Context, records []*Record) (err error) {
	defer func() {
		if err == nil {
			return
		}
		s.logger.Err().
			Int(`rows`, len(records)).
			Err(err).
			Log(`sqlitestore: write failed`)
		s.mu.Lock()
		if s.writeErr == nil {
			s.writeErr = err
		}
		s.mu.Unlock()
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO events (
			session_id, id, parent_id, kind, status, args, result, error, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var parentID sql.NullInt64
		if rec.ParentID != 0 {
			parentID = sql.NullInt64{Int64: int64(rec.ParentID), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			rec.SessionID,
			int64(rec.ID),
			parentID,
			rec.Kind,
			rec.Status,
			string(encodeArgs(rec.Args)),
			rec.Result,
			rec.Error,
			rec.StartedAt.UTC().Format(time.RFC3339Nano),
			rec.EndedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("sqlitestore: insert event %d: %w", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}

	s.logger.Trace().
		Int(`rows`, len(records)).
		Log(`sqlitestore: batch written`)

	return nil
}

// Events returns the persisted events of a session, in ID order. Rows still
// queued are not included, see [Store.Flush].
func (s *Store) Events(ctx context.Context, sessionID string) ([]*Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, id, parent_id, kind, status, args, result, error, started_at, ended_at
		FROM events
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query events: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: iterate events: %w", err)
	}

	return records, nil
}

// Sessions returns the IDs of every persisted session, in the order they
// were first written.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id
		FROM events
		GROUP BY session_id
		ORDER BY MIN(rowid) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: iterate sessions: %w", err)
	}

	return sessions, nil
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		rec                Record
		id                 int64
		parentID           sql.NullInt64
		args               string
		startedAt, endedAt string
	)
	if err := rows.Scan(
		&rec.SessionID,
		&id,
		&parentID,
		&rec.Kind,
		&rec.Status,
		&args,
		&rec.Result,
		&rec.Error,
		&startedAt,
		&endedAt,
	); err != nil {
		return nil, fmt.Errorf("sqlitestore: scan event: %w", err)
	}

	rec.ID = uint64(id)
	if parentID.Valid {
		rec.ParentID = uint64(parentID.Int64)
	}

	if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode args of event %d: %w", rec.ID, err)
	}

	var err error
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("sqlitestore: parse started_at of event %d: %w", rec.ID, err)
	}
	if rec.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return nil, fmt.Errorf("sqlitestore: parse ended_at of event %d: %w", rec.ID, err)
	}

	return &rec, nil
}

// newRecord snapshots a terminal event.
func newRecord(sessionID string, ev *loopprof.Event) *Record {
	rec := &Record{
		SessionID: sessionID,
		ID:        ev.ID(),
		Kind:      ev.Kind().String(),
		Status:    ev.Status().String(),
		StartedAt: ev.StartTime(),
		EndedAt:   ev.EndTime(),
	}
	if parent := ev.Parent(); parent != nil {
		rec.ParentID = parent.ID()
	}
	args := ev.Args()
	rec.Args = make([]string, len(args))
	for i, arg := range args {
		rec.Args[i] = loopprof.FormatArg(arg)
	}
	if result := ev.Result(); result != nil {
		rec.Result = loopprof.FormatArg(result)
	}
	if err := ev.Err(); err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// encodeArgs renders args as a JSON array of strings.
func encodeArgs(args []string) []byte {
	b := make([]byte, 0, 2+len(args)*16)
	b = append(b, '[')
	for i, arg := range args {
		if i != 0 {
			b = append(b, ',')
		}
		b = jsonenc.AppendString(b, arg)
	}
	return append(b, ']')
}
