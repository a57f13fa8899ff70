package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chargepilot/internal/auth"
	"chargepilot/internal/http/middleware"
	"chargepilot/internal/models"
	"chargepilot/internal/repository"
)

// AdminHandlers exposes the operator surface: login, stations, transactions.
type AdminHandlers struct {
	login        string
	passwordHash string
	hasher       auth.Hasher
	tokens       *auth.TokenService
	stations     *repository.StationRepository
	transactions *repository.TransactionRepository
	logger       *zap.Logger
}

// NewAdminHandlers returns handlers instance.
func NewAdminHandlers(
	login, passwordHash string,
	hasher auth.Hasher,
	tokens *auth.TokenService,
	stations *repository.StationRepository,
	transactions *repository.TransactionRepository,
	logger *zap.Logger,
) *AdminHandlers {
	return &AdminHandlers{
		login:        login,
		passwordHash: passwordHash,
		hasher:       hasher,
		tokens:       tokens,
		stations:     stations,
		transactions: transactions,
		logger:       logger,
	}
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login handles POST /api/admin/login.
func (h *AdminHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Login != h.login || h.hasher.Compare(h.passwordHash, req.Password) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.GenerateToken(req.Login, "admin")
	if err != nil {
		h.logger.Error("generate admin token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ListStations handles GET /api/admin/stations.
func (h *AdminHandlers) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.stations.List(r.Context())
	if err != nil {
		h.logger.Error("list stations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch stations")
		return
	}
	if stations == nil {
		stations = []models.Station{}
	}
	writeJSON(w, http.StatusOK, stations)
}

type createStationRequest struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ConnectorType string  `json:"connectorType"`
	PricePerKWh   float64 `json:"pricePerKwh"`
	Status        string  `json:"status"`
}

// CreateStation handles POST /api/admin/stations.
func (h *AdminHandlers) CreateStation(w http.ResponseWriter, r *http.Request) {
	var req createStationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if strings.TrimSpace(req.ConnectorType) == "" {
		writeError(w, http.StatusBadRequest, "connectorType is required")
		return
	}
	if req.PricePerKWh <= 0 {
		writeError(w, http.StatusBadRequest, "pricePerKwh must be greater than 0")
		return
	}

	status := req.Status
	if status == "" {
		status = models.StationAvailable
	}
	if req.ID == "" {
		req.ID = generateStationID()
	}

	station := &models.Station{
		ID:            req.ID,
		Name:          req.Name,
		ConnectorType: req.ConnectorType,
		PricePerKWh:   req.PricePerKWh,
		Status:        status,
	}

	if err := h.stations.Create(r.Context(), station); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			writeError(w, http.StatusConflict, "a station with this ID already exists")
			return
		}
		h.logger.Error("create station failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create station")
		return
	}

	admin, _ := middleware.AdminFromContext(r.Context())
	h.logger.Info("station created",
		zap.String("station_id", station.ID),
		zap.String("admin", admin),
	)

	writeJSON(w, http.StatusCreated, station)
}

// ListTransactions handles GET /api/admin/transactions.
func (h *AdminHandlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions.List(r.Context(), 100)
	if err != nil {
		h.logger.Error("list transactions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch transactions")
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func generateStationID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("station-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
