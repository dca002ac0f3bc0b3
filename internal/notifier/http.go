package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Server exposes the agent-facing HTTP API. Requests are acknowledged
// immediately; delivery to the admins happens in the background so a
// slow Telegram call never stalls the agent loop.
type Server struct {
	svc *Service
	srv *http.Server

	// background is the context delivery goroutines run under, detached
	// from the request context.
	background context.Context
}

func NewServer(ctx context.Context, svc *Service, addr string) *Server {
	s := &Server{svc: svc, background: ctx}

	mux := http.NewServeMux()
	mux.HandleFunc("/confirm-tx", s.handleConfirmTx)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleConfirmTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.TxHash == "" {
		http.Error(w, "tx_hash is required", http.StatusBadRequest)
		return
	}

	go func() {
		if err := s.svc.RequestConfirmation(s.background, in.TxHash); err != nil {
			s.svc.log.Error().Err(err).Str("tx", in.TxHash).Msg("confirmation delivery failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "confirmation request sent"})
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
