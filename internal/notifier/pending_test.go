package notifier

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePool models the pending_confirmations table, including the
// conflict behavior of the insert, so store semantics can be checked
// without a database.
type fakePool struct {
	mu    sync.Mutex
	rows  map[string]*fakeRow
	order []string
}

type fakeRow struct {
	key       string
	txHash    string
	status    string
	createdAt time.Time
	resolved  bool
}

func newFakePool() *fakePool {
	return &fakePool{rows: make(map[string]*fakeRow)}
}

func (p *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case strings.HasPrefix(strings.TrimSpace(sql), "INSERT"):
		key := args[0].(string)
		row, exists := p.rows[key]
		if exists {
			if strings.Contains(sql, "DO UPDATE") {
				row.txHash = args[1].(string)
				row.status = args[2].(string)
				row.createdAt = args[3].(time.Time)
				row.resolved = false
			}
			return pgconn.CommandTag{}, nil
		}
		p.rows[key] = &fakeRow{
			key:       key,
			txHash:    args[1].(string),
			status:    args[2].(string),
			createdAt: args[3].(time.Time),
		}
		p.order = append(p.order, key)
	case strings.HasPrefix(strings.TrimSpace(sql), "UPDATE"):
		if row, ok := p.rows[args[0].(string)]; ok {
			row.resolved = true
		}
	}
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var unresolved []fakeRow
	for _, key := range p.order {
		if row := p.rows[key]; !row.resolved {
			unresolved = append(unresolved, *row)
		}
	}
	return &fakeRows{rows: unresolved, idx: -1}, nil
}

type fakeRows struct {
	rows []fakeRow
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.idx++; return r.idx < len(r.rows) }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	*dest[0].(*string) = row.key
	*dest[1].(*string) = row.txHash
	*dest[2].(*string) = row.status
	*dest[3].(*time.Time) = row.createdAt
	return nil
}

func pendingTx(key string) PendingTx {
	return PendingTx{
		Key:       key,
		TxHash:    key + "ffff",
		Status:    "AWAITING_CONFIRMATIONS",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPGStoreReplayLoadsUnresolvedRows(t *testing.T) {
	ctx := context.Background()
	pool := newFakePool()

	first := NewPGStore(pool, zerolog.Nop())
	require.NoError(t, first.Put(ctx, pendingTx("0xaaa")))
	require.NoError(t, first.Put(ctx, pendingTx("0xbbb")))
	require.NoError(t, first.Delete(ctx, "0xaaa"))

	// A restart starts from an empty mirror and replays from the table.
	second := NewPGStore(pool, zerolog.Nop())
	require.NoError(t, second.Replay(ctx))

	_, ok, err := second.Get(ctx, "0xaaa")
	require.NoError(t, err)
	assert.False(t, ok, "resolved rows stay resolved")

	tx, ok, err := second.Get(ctx, "0xbbb")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0xbbbffff", tx.TxHash)
}

func TestPGStoreResolvedTxCanBeRequestedAgain(t *testing.T) {
	ctx := context.Background()
	pool := newFakePool()

	first := NewPGStore(pool, zerolog.Nop())
	require.NoError(t, first.Put(ctx, pendingTx("0xccc")))
	require.NoError(t, first.Delete(ctx, "0xccc"))
	require.NoError(t, first.Put(ctx, pendingTx("0xccc")))

	// The second request must survive a restart like the first one did.
	second := NewPGStore(pool, zerolog.Nop())
	require.NoError(t, second.Replay(ctx))

	tx, ok, err := second.Get(ctx, "0xccc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0xcccffff", tx.TxHash)

	pending, err := second.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
