package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"chargepilot/internal/models"
	"chargepilot/internal/payment"
	"chargepilot/internal/repository"
)

// StationDirectory resolves stations for session creation.
type StationDirectory interface {
	GetByID(ctx context.Context, stationID string) (*models.Station, error)
}

// SessionStore opens transactions and reports a station's active session.
type SessionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	FindActiveByStation(ctx context.Context, stationID string) (*models.Transaction, error)
}

// PaymentHandlers authorizes holds and opens Pending sessions.
type PaymentHandlers struct {
	payments     payment.Provider
	stations     StationDirectory
	transactions SessionStore
	locks        stationLocks
	logger       *zap.Logger
}

// NewPaymentHandlers returns handlers instance.
func NewPaymentHandlers(
	payments payment.Provider,
	stations StationDirectory,
	transactions SessionStore,
	logger *zap.Logger,
) *PaymentHandlers {
	return &PaymentHandlers{
		payments:     payments,
		stations:     stations,
		transactions: transactions,
		logger:       logger,
	}
}

type createIntentRequest struct {
	StationID string  `json:"stationId"`
	Amount    float64 `json:"amount"`
}

// CreateIntent handles POST /api/payments/intent: authorize a hold with the
// payment provider and create the Pending transaction. A station with a
// Pending or Charging transaction is busy and refuses a new session; the
// busy check and the insert run under a per-station lock so concurrent
// requests cannot both open a session.
func (h *PaymentHandlers) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be greater than 0")
		return
	}
	if req.StationID == "" {
		writeError(w, http.StatusBadRequest, "stationId is required")
		return
	}

	ctx := r.Context()
	if _, err := h.stations.GetByID(ctx, req.StationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "station not found")
			return
		}
		h.logger.Error("load station failed", zap.String("station_id", req.StationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load station")
		return
	}

	unlock := h.locks.lock(req.StationID)
	defer unlock()

	if _, err := h.transactions.FindActiveByStation(ctx, req.StationID); err == nil {
		writeError(w, http.StatusConflict, "station already has an active session")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		h.logger.Error("check active session failed", zap.String("station_id", req.StationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to check station state")
		return
	}

	hold, err := h.payments.CreateIntent(ctx, req.Amount)
	if err != nil {
		h.logger.Error("create payment intent failed", zap.Float64("amount", req.Amount), zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment authorization failed")
		return
	}

	tx := &models.Transaction{
		StationID:        req.StationID,
		PaymentIntentID:  hold.ID,
		AmountAuthorized: req.Amount,
		Status:           models.TxPending,
	}
	if err := h.transactions.Create(ctx, tx); err != nil {
		h.logger.Error("create transaction failed", zap.String("station_id", req.StationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":            hold.ID,
		"clientSecret":  hold.ClientSecret,
		"transactionId": tx.ID,
	})
}

// stationLocks serializes session creation per station.
type stationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *stationLocks) lock(stationID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[stationID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[stationID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
