package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowpoke-labs/chairman/internal/telegram"

	safeclient "github.com/cowpoke-labs/chairman/internal/safe"
)

const testTxHash = "0x1111111111111111111111111111111111111111111111111111111111111111"

// fakeSafe counts calls per endpoint.
type fakeSafe struct {
	mu       sync.Mutex
	confirms int
	balances int
	statuses int
}

func (f *fakeSafe) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case strings.HasPrefix(r.URL.Path, "/safe/status"):
			f.statuses++
			json.NewEncoder(w).Encode(map[string]any{"status": "AWAITING_CONFIRMATIONS"})
		case r.URL.Path == "/safe/confirm":
			f.confirms++
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/safe/balance":
			f.balances++
			json.NewEncoder(w).Encode(map[string]any{
				"safeAddress":   "0xSafe",
				"nativeBalance": "1500000000000000000",
				"tokens": []map[string]any{
					{"balance": "250000000", "token": map[string]any{"symbol": "USDC", "decimals": 6}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

// fakeTelegram records Bot API calls.
type fakeTelegram struct {
	mu    sync.Mutex
	calls []string
	texts []string
}

func (f *fakeTelegram) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]

		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)

		f.mu.Lock()
		f.calls = append(f.calls, method)
		if text, ok := payload["text"].(string); ok {
			f.texts = append(f.texts, text)
		}
		f.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 42},
		})
	}))
}

func (f *fakeTelegram) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T, safe *fakeSafe, tg *fakeTelegram) *Service {
	t.Helper()
	safeSrv := safe.server()
	tgSrv := tg.server()
	t.Cleanup(safeSrv.Close)
	t.Cleanup(tgSrv.Close)

	svc := NewService(ServiceOptions{
		Store:       NewMemoryStore(),
		Telegram:    telegram.NewWithBaseURL("token", tgSrv.URL),
		Safe:        safeclient.New(safeSrv.URL),
		Admins:      []int64{100, 200},
		Signer:      "0xSigner",
		SafeAddress: "0xSafe",
		Log:         zerolog.Nop(),
	})
	svc.settle = func(context.Context) {}
	return svc
}

func TestRequestConfirmationNotifiesAllAdmins(t *testing.T) {
	safe := &fakeSafe{}
	tg := &fakeTelegram{}
	svc := newTestService(t, safe, tg)

	require.NoError(t, svc.RequestConfirmation(context.Background(), testTxHash))

	assert.Equal(t, 1, safe.statuses)
	assert.Equal(t, 2, tg.count("sendMessage"))

	pending, err := svc.store.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, testTxHash, pending[0].TxHash)
	assert.Len(t, pending[0].Key, callbackKeyLen)
}

func TestApproveConfirmsExactlyOnce(t *testing.T) {
	safe := &fakeSafe{}
	tg := &fakeTelegram{}
	svc := newTestService(t, safe, tg)
	ctx := context.Background()

	require.NoError(t, svc.RequestConfirmation(ctx, testTxHash))
	cb := &telegram.Callback{ID: "cb1", Data: confirmPrefix + keyFor(testTxHash), MessageID: 42}

	svc.HandleCallback(ctx, 100, cb)
	assert.Equal(t, 1, safe.confirms)
	assert.Equal(t, 1, safe.balances)

	// Second tap on the same button finds nothing to do.
	svc.HandleCallback(ctx, 100, cb)
	assert.Equal(t, 1, safe.confirms)
	assert.Equal(t, 1, safe.balances)

	pending, _ := svc.store.Pending(ctx)
	assert.Empty(t, pending)
}

func TestRejectNeverTouchesTheChain(t *testing.T) {
	safe := &fakeSafe{}
	tg := &fakeTelegram{}
	svc := newTestService(t, safe, tg)
	ctx := context.Background()

	require.NoError(t, svc.RequestConfirmation(ctx, testTxHash))
	safe.statuses = 0

	cb := &telegram.Callback{ID: "cb1", Data: rejectPrefix + keyFor(testTxHash), MessageID: 42}
	svc.HandleCallback(ctx, 100, cb)

	assert.Equal(t, 0, safe.confirms)
	assert.Equal(t, 0, safe.balances)
	assert.Equal(t, 0, safe.statuses)

	pending, _ := svc.store.Pending(ctx)
	assert.Empty(t, pending)
}

func TestHTTPAcceptsAndAcknowledges(t *testing.T) {
	safe := &fakeSafe{}
	tg := &fakeTelegram{}
	svc := newTestService(t, safe, tg)
	srv := NewServer(context.Background(), svc, ":0")

	t.Run("valid request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/confirm-tx",
			strings.NewReader(`{"tx_hash": "`+testTxHash+`"}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "confirmation request sent", body["status"])
	})

	t.Run("missing hash", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/confirm-tx", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/confirm-tx", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestFormatBalances(t *testing.T) {
	decimals := 6
	out := FormatBalances(&safeclient.Balances{
		SafeAddress:   "0xSafe",
		NativeBalance: "1500000000000000000",
		Tokens: []safeclient.TokenBalance{
			{Balance: "250000000", Token: &struct {
				Symbol   string `json:"symbol"`
				Decimals int    `json:"decimals"`
			}{Symbol: "USDC", Decimals: decimals}},
		},
	})
	assert.Contains(t, out, "ETH: 1.5000")
	assert.Contains(t, out, "USDC: 250.0000")
}
