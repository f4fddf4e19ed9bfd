// Package api serves read-only views of positions, pairs and transactions.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// Server exposes stored records over HTTP.
type Server struct {
	stores  storage.Stores
	metrics http.Handler
	log     logrus.FieldLogger
}

// NewServer creates a server over stores. A nil metrics handler omits /metrics.
func NewServer(stores storage.Stores, metrics http.Handler, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{stores: stores, metrics: metrics, log: log}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/positions/{user}/{token}", s.handleGetPosition)
	r.Get("/pairs/{address}", s.handleGetPair)
	r.Get("/transactions/{hash}", s.handleGetTransaction)
	return r
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r, "user")
	if !ok {
		return
	}
	token, ok := addressParam(w, r, "token")
	if !ok {
		return
	}

	p, err := s.stores.Positions.Get(r.Context(), user, token)
	if err != nil {
		s.storeError(w, r, "position", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}

	p, err := s.stores.Pairs.Get(r.Context(), addr)
	if err != nil {
		s.storeError(w, r, "pair", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// TransactionResponse is a transaction with its recorded swap legs.
type TransactionResponse struct {
	*domain.Transaction
	Legs []*domain.SwapLeg `json:"legs"`
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "hash")
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		writeError(w, http.StatusBadRequest, "invalid transaction hash: "+raw)
		return
	}
	hash := common.BytesToHash(b)

	tx, err := s.stores.Transactions.Get(r.Context(), hash)
	if err != nil {
		s.storeError(w, r, "transaction", err)
		return
	}
	legs, err := s.stores.SwapLegs.GetByTransaction(r.Context(), hash)
	if err != nil {
		s.storeError(w, r, "swap legs", err)
		return
	}
	if legs == nil {
		legs = []*domain.SwapLeg{}
	}
	writeJSON(w, http.StatusOK, TransactionResponse{Transaction: tx, Legs: legs})
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, kind+" not found")
		return
	}
	s.log.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	}).WithError(err).Error("store lookup failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid "+name+" address: "+raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
