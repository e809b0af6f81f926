package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"DiveHouse/internal/engine"
	"DiveHouse/internal/ledger"
	"DiveHouse/internal/model"
	"DiveHouse/internal/session"
	"DiveHouse/internal/store"
)

// Server exposes the engine over HTTP.
type Server struct {
	engine *engine.Engine
}

func NewServer(eng *engine.Engine) *Server {
	return &Server{engine: eng}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.handleOpen)
	mux.HandleFunc("GET /sessions/{id}", s.handleGet)
	mux.HandleFunc("POST /sessions/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /sessions/{id}/cashout", s.handleCashOut)
	mux.HandleFunc("POST /sessions/{id}/reclaim", s.handleReclaim)
	mux.HandleFunc("GET /house", s.handleHouse)
	mux.HandleFunc("POST /admin/config", s.handleUpdateParams)
	mux.HandleFunc("POST /admin/withdraw", s.handleWithdraw)
	mux.HandleFunc("POST /admin/lock", s.handleToggleLock)
	mux.HandleFunc("POST /admin/reset-reserved", s.handleResetReserved)
	return mux
}

type openRequest struct {
	Player string `json:"player"`
	Bet    uint64 `json:"bet"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Player == "" {
		writeError(w, http.StatusBadRequest, "player is required")
		return
	}
	sess, err := s.engine.Open(r.Context(), req.Player, req.Bet)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Session(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type advanceResponse struct {
	Outcome string         `json:"outcome"`
	Session *model.Session `json:"session"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, outcome, err := s.engine.Advance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{Outcome: outcome.String(), Session: sess})
}

func (s *Server) handleCashOut(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.CashOut(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.ReclaimExpired(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type houseResponse struct {
	Balance       uint64 `json:"balance"`
	TotalReserved uint64 `json:"total_reserved"`
	Locked        bool   `json:"locked"`
}

func (s *Server) handleHouse(w http.ResponseWriter, r *http.Request) {
	balance, state, err := s.engine.HouseStatus()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, houseResponse{
		Balance:       balance,
		TotalReserved: state.TotalReserved,
		Locked:        state.Locked,
	})
}

func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	var update model.ParamsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	params, err := s.engine.UpdateParams(r.Context(), update)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

type withdrawRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}
	if err := s.engine.Withdraw(r.Context(), req.To, req.Amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"withdrawn": req.Amount})
}

func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	locked, err := s.engine.ToggleLock(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"locked": locked})
}

func (s *Server) handleResetReserved(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ResetReserved(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeEngineError maps engine sentinels onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidBet),
		errors.Is(err, model.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidStatus),
		errors.Is(err, engine.ErrMaxRoundsReached),
		errors.Is(err, engine.ErrNotYetExpired),
		errors.Is(err, engine.ErrInsufficientProfit),
		errors.Is(err, ledger.ErrOutstandingReservations):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrLocked):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrCapacityExceeded):
		status = http.StatusUnprocessableEntity
	default:
		log.Printf("[ERROR] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] encode response: %v", err)
	}
}
