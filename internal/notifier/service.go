package notifier

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cowpoke-labs/chairman/internal/safe"
	"github.com/cowpoke-labs/chairman/internal/telegram"
)

const (
	// callbackKeyLen keeps callback data inside Telegram's 64-byte
	// limit even with the action prefix.
	callbackKeyLen = 32

	confirmPrefix = "c_"
	rejectPrefix  = "r_"

	// settleDelay is how long to wait after a confirmation before
	// fetching balances, so the balance report reflects the executed
	// transaction.
	settleDelay = 2 * time.Second
)

// Service ties the pending store, the Telegram bot and the Safe API
// together.
type Service struct {
	store  PendingStore
	tg     *telegram.Client
	safe   *safe.Client
	admins []int64

	signer      string
	safeAddress string

	log zerolog.Logger

	// settle is swappable in tests.
	settle func(ctx context.Context)
}

type ServiceOptions struct {
	Store       PendingStore
	Telegram    *telegram.Client
	Safe        *safe.Client
	Admins      []int64
	Signer      string
	SafeAddress string
	Log         zerolog.Logger
}

func NewService(opts ServiceOptions) *Service {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	return &Service{
		store:       opts.Store,
		tg:          opts.Telegram,
		safe:        opts.Safe,
		admins:      opts.Admins,
		signer:      opts.Signer,
		safeAddress: opts.SafeAddress,
		log:         opts.Log,
		settle: func(ctx context.Context) {
			select {
			case <-ctx.Done():
			case <-time.After(settleDelay):
			}
		},
	}
}

// keyFor derives the callback key from a transaction hash.
func keyFor(txHash string) string {
	if len(txHash) <= callbackKeyLen {
		return txHash
	}
	return txHash[:callbackKeyLen]
}

// RequestConfirmation records the transaction as pending and messages
// every admin an approval keyboard. Requesting the same hash twice
// refreshes the message but keeps a single pending entry.
func (s *Service) RequestConfirmation(ctx context.Context, txHash string) error {
	key := keyFor(txHash)

	status := "unknown"
	if st, err := s.safe.CheckStatus(ctx, txHash); err != nil {
		s.log.Warn().Err(err).Str("tx", txHash).Msg("status check failed")
	} else {
		status = st.Status
	}

	if err := s.store.Put(ctx, PendingTx{
		Key:       key,
		TxHash:    txHash,
		Status:    status,
		CreatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("store pending tx: %w", err)
	}

	text := fmt.Sprintf("Transaction pending approval\n\nHash: %s\nStatus: %s", txHash, status)
	buttons := []telegram.Button{
		{Text: "Approve", CallbackData: confirmPrefix + key},
		{Text: "Reject", CallbackData: rejectPrefix + key},
	}

	var firstErr error
	for _, admin := range s.admins {
		if _, err := s.tg.SendWithButtons(ctx, admin, text, buttons); err != nil {
			s.log.Error().Err(err).Int64("admin", admin).Msg("notify admin")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ResendPending re-sends the approval keyboard for every unresolved
// transaction. Called on startup after a durable store replays its rows,
// since the original messages' buttons may be long gone.
func (s *Service) ResendPending(ctx context.Context) error {
	pending, err := s.store.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	for _, tx := range pending {
		text := fmt.Sprintf("Transaction still pending approval\n\nHash: %s\nStatus: %s", tx.TxHash, tx.Status)
		buttons := []telegram.Button{
			{Text: "Approve", CallbackData: confirmPrefix + tx.Key},
			{Text: "Reject", CallbackData: rejectPrefix + tx.Key},
		}
		for _, admin := range s.admins {
			if _, err := s.tg.SendWithButtons(ctx, admin, text, buttons); err != nil {
				s.log.Error().Err(err).Int64("admin", admin).Str("tx", tx.TxHash).Msg("resend pending")
			}
		}
	}
	return nil
}

// HandleCallback resolves an approve or reject button press. Unknown or
// already-resolved keys get a polite ack and nothing else, so double
// taps never confirm twice.
func (s *Service) HandleCallback(ctx context.Context, chatID int64, cb *telegram.Callback) {
	var key string
	var approve bool
	switch {
	case strings.HasPrefix(cb.Data, confirmPrefix):
		key, approve = strings.TrimPrefix(cb.Data, confirmPrefix), true
	case strings.HasPrefix(cb.Data, rejectPrefix):
		key, approve = strings.TrimPrefix(cb.Data, rejectPrefix), false
	default:
		_ = s.tg.AnswerCallback(ctx, cb.ID, "")
		return
	}

	tx, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("pending lookup")
		_ = s.tg.AnswerCallback(ctx, cb.ID, "Something went wrong.")
		return
	}
	if !ok {
		_ = s.tg.AnswerCallback(ctx, cb.ID, "Already handled.")
		return
	}

	// Resolve before acting so a second press finds nothing.
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("resolve pending")
	}

	if !approve {
		_ = s.tg.AnswerCallback(ctx, cb.ID, "Rejected")
		_ = s.tg.EditMessageText(ctx, chatID, cb.MessageID,
			fmt.Sprintf("Transaction rejected\n\nHash: %s", tx.TxHash))
		s.log.Info().Str("tx", tx.TxHash).Msg("transaction rejected")
		return
	}

	_ = s.tg.AnswerCallback(ctx, cb.ID, "Confirming…")

	if err := s.safe.ConfirmTransaction(ctx, s.signer, s.safeAddress, tx.TxHash); err != nil {
		s.log.Error().Err(err).Str("tx", tx.TxHash).Msg("confirm failed")
		_ = s.tg.EditMessageText(ctx, chatID, cb.MessageID,
			fmt.Sprintf("Confirmation failed\n\nHash: %s\nError: %v", tx.TxHash, err))
		return
	}
	s.log.Info().Str("tx", tx.TxHash).Msg("transaction confirmed")

	_ = s.tg.EditMessageText(ctx, chatID, cb.MessageID,
		fmt.Sprintf("Transaction confirmed\n\nHash: %s", tx.TxHash))

	s.settle(ctx)

	balances, err := s.safe.GetBalances(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("balance fetch failed")
		_ = s.tg.Send(ctx, chatID, "Confirmed, but the balance report is unavailable.")
		return
	}
	_ = s.tg.Send(ctx, chatID, FormatBalances(balances))
}

// FormatBalances renders a post-confirmation treasury report.
func FormatBalances(b *safe.Balances) string {
	var out strings.Builder
	out.WriteString("Treasury balances\n")
	fmt.Fprintf(&out, "Safe: %s\n\n", b.SafeAddress)
	fmt.Fprintf(&out, "ETH: %s\n", formatUnits(b.NativeBalance, 18))
	for _, t := range b.Tokens {
		if t.Token == nil {
			continue
		}
		fmt.Fprintf(&out, "%s: %s\n", t.Token.Symbol, formatUnits(t.Balance, t.Token.Decimals))
	}
	return out.String()
}

// formatUnits converts a raw integer balance string to a decimal with
// four fractional digits.
func formatUnits(raw string, decimals int) string {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	if decimals <= 0 {
		return v.String()
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(v, div, new(big.Int))
	fracStr := fmt.Sprintf("%0*s", decimals, frac.Abs(frac).String())
	if len(fracStr) > 4 {
		fracStr = fracStr[:4]
	}
	return whole.String() + "." + fracStr
}
