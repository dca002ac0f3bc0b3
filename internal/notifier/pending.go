// Package notifier delivers pending Safe transactions to human operators
// over Telegram and turns their button presses into on-chain
// confirmations.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// PendingTx is one transaction awaiting operator approval. Key is the
// callback-safe identifier derived from the hash; TxHash is the full
// Safe transaction hash.
type PendingTx struct {
	Key       string
	TxHash    string
	Status    string
	CreatedAt time.Time
}

// PendingStore keeps the set of transactions awaiting approval.
type PendingStore interface {
	Put(ctx context.Context, tx PendingTx) error
	Get(ctx context.Context, key string) (PendingTx, bool, error)
	Delete(ctx context.Context, key string) error
	Pending(ctx context.Context) ([]PendingTx, error)
}

// ── MemoryStore ──────────────────────────────────────────────────────────────

// MemoryStore is the default store. Contents are lost on restart; the
// agent can always re-request a confirmation.
type MemoryStore struct {
	mu  sync.Mutex
	txs map[string]PendingTx
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]PendingTx)}
}

func (s *MemoryStore) Put(_ context.Context, tx PendingTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.Key] = tx
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (PendingTx, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[key]
	return tx, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.txs, key)
	return nil
}

func (s *MemoryStore) Pending(_ context.Context) ([]PendingTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingTx, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx)
	}
	return out, nil
}

// ── PGStore ──────────────────────────────────────────────────────────────────

// PGStore persists pending transactions to Postgres so an approval
// request survives a notifier restart. Writes go through to the
// database; reads hit an in-memory mirror populated by Replay.
//
// Required table (applied by the consumer, not by PGStore itself):
//
//	CREATE TABLE IF NOT EXISTS pending_confirmations (
//	    id         BIGSERIAL PRIMARY KEY,
//	    key        TEXT NOT NULL UNIQUE,
//	    tx_hash    TEXT NOT NULL,
//	    status     TEXT NOT NULL,
//	    created_at TIMESTAMPTZ DEFAULT NOW(),
//	    resolved_at TIMESTAMPTZ
//	);
type PGStore struct {
	mem  *MemoryStore
	pool pgPool
	log  zerolog.Logger
}

// pgPool is the subset of pgxpool.Pool that PGStore uses.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewPGStore(pool pgPool, log zerolog.Logger) *PGStore {
	return &PGStore{mem: NewMemoryStore(), pool: pool, log: log}
}

// Replay loads unresolved rows into the in-memory mirror. Call once on
// startup after the table exists.
func (s *PGStore) Replay(ctx context.Context) error {
	rows, err := s.pool.Query(ctx,
		`SELECT key, tx_hash, status, created_at
		 FROM pending_confirmations
		 WHERE resolved_at IS NULL
		 ORDER BY created_at`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var tx PendingTx
		if err := rows.Scan(&tx.Key, &tx.TxHash, &tx.Status, &tx.CreatedAt); err != nil {
			return err
		}
		if err := s.mem.Put(ctx, tx); err != nil {
			return err
		}
		count++
	}
	if count > 0 {
		s.log.Info().Int("count", count).Msg("replayed pending confirmations")
	}
	return rows.Err()
}

func (s *PGStore) Put(ctx context.Context, tx PendingTx) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pending_confirmations (key, tx_hash, status, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE
		 SET tx_hash = EXCLUDED.tx_hash,
		     status = EXCLUDED.status,
		     created_at = EXCLUDED.created_at,
		     resolved_at = NULL`,
		tx.Key, tx.TxHash, tx.Status, tx.CreatedAt,
	)
	if err != nil {
		return err
	}
	return s.mem.Put(ctx, tx)
}

func (s *PGStore) Get(ctx context.Context, key string) (PendingTx, bool, error) {
	return s.mem.Get(ctx, key)
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE pending_confirmations SET resolved_at = NOW() WHERE key = $1`,
		key,
	)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("resolve pending confirmation")
	}
	return s.mem.Delete(ctx, key)
}

func (s *PGStore) Pending(ctx context.Context) ([]PendingTx, error) {
	return s.mem.Pending(ctx)
}
