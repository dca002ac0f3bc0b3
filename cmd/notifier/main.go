// notifier: Telegram approval service for Safe transactions.
//
// The agent POSTs pending transaction hashes to /confirm-tx; admins get
// an approve/reject keyboard and the service confirms on chain only
// after a human taps Approve. With DATABASE_URL set, pending requests
// survive restarts.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/cowpoke-labs/chairman/internal/logger"
	"github.com/cowpoke-labs/chairman/internal/notifier"
	"github.com/cowpoke-labs/chairman/internal/telegram"

	safeclient "github.com/cowpoke-labs/chairman/internal/safe"
)

const pendingSchema = `
CREATE TABLE IF NOT EXISTS pending_confirmations (
    id          BIGSERIAL PRIMARY KEY,
    key         TEXT NOT NULL UNIQUE,
    tx_hash     TEXT NOT NULL,
    status      TEXT NOT NULL,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    resolved_at TIMESTAMPTZ
)`

func main() {
	log := logger.New(logger.Config{
		Level:   envOr("LOG_LEVEL", "info"),
		Service: "notifier",
		Output:  os.Stderr,
	})

	botToken := mustEnv(log, "TELEGRAM_BOT_TOKEN")
	safeURL := mustEnv(log, "SAFE_API_URL")
	signer := mustEnv(log, "SAFE_SIGNER")
	safeAddress := mustEnv(log, "SAFE_ADDRESS")
	admins := parseAdmins(log, mustEnv(log, "TELEGRAM_ADMIN_IDS"))
	addr := envOr("LISTEN_ADDR", ":8080")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store notifier.PendingStore = notifier.NewMemoryStore()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("db connect")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping")
		}
		if _, err := pool.Exec(ctx, pendingSchema); err != nil {
			log.Fatal().Err(err).Msg("schema")
		}

		pg := notifier.NewPGStore(pool, log)
		if err := pg.Replay(ctx); err != nil {
			log.Fatal().Err(err).Msg("replay pending confirmations")
		}
		store = pg
		log.Info().Msg("using postgres-backed pending store")
	}

	svc := notifier.NewService(notifier.ServiceOptions{
		Store:       store,
		Telegram:    telegram.New(botToken),
		Safe:        safeclient.New(safeURL),
		Admins:      admins,
		Signer:      signer,
		SafeAddress: safeAddress,
		Log:         log,
	})

	if err := svc.ResendPending(ctx); err != nil {
		log.Error().Err(err).Msg("resend pending confirmations")
	}

	srv := notifier.NewServer(ctx, svc, addr)

	go func() {
		log.Info().Str("addr", addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Int("admins", len(admins)).Msg("starting bot loop")
	if err := svc.RunBot(ctx, 30); err != nil {
		log.Fatal().Err(err).Msg("bot loop")
	}
}

func mustEnv(log zerolog.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatal().Str("var", key).Msg("required environment variable is not set")
	}
	return v
}

func parseAdmins(log zerolog.Logger, raw string) []int64 {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Fatal().Str("value", part).Msg("invalid admin id")
		}
		out = append(out, id)
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
