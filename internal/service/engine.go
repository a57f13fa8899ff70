package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chargepilot/internal/meter"
	"chargepilot/internal/models"
	"chargepilot/internal/ocpp"
	"chargepilot/internal/ocpp/protocol"
	"chargepilot/internal/repository"
	"chargepilot/internal/telemetry"
)

// TransactionStore is the subset of transaction persistence the engine needs.
type TransactionStore interface {
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	FindPendingByStation(ctx context.Context, stationID string) (*models.Transaction, error)
	FindChargingByStation(ctx context.Context, stationID string) (*models.Transaction, error)
	Update(ctx context.Context, tx *models.Transaction) error
}

// StationStore is the subset of station persistence the engine needs.
type StationStore interface {
	GetByID(ctx context.Context, stationID string) (*models.Station, error)
	UpdateStatus(ctx context.Context, stationID, status string) error
}

// PaymentProvider issues refunds against a previously authorized hold.
type PaymentProvider interface {
	Refund(ctx context.Context, paymentIntentID string, amount float64) (string, error)
}

// Publisher receives live telemetry events.
type Publisher interface {
	Publish(event telemetry.Event)
}

// FrameSender delivers a raw frame to one station.
type FrameSender interface {
	Send(msg []byte)
}

// ConnectionLookup resolves the live connection for a station.
type ConnectionLookup func(stationID string) (FrameSender, bool)

var idCounter uint64

var idGenerator = generateUniqueID

// generateUniqueID derives ids from wall time plus a monotonic counter, so
// an id is never reused within the process lifetime.
func generateUniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixMilli(), atomic.AddUint64(&idCounter, 1))
}

// Engine owns the transaction state machine: it dispatches remote commands,
// consumes their acknowledgements, folds meter reports into the active
// session, and settles completed transactions.
type Engine struct {
	transactions TransactionStore
	stations     StationStore
	payments     PaymentProvider
	publisher    Publisher
	lookup       ConnectionLookup
	pending      *PendingCommands
	locks        stationLocks
	logger       *zap.Logger
}

// NewEngine builds engine.
func NewEngine(
	transactions TransactionStore,
	stations StationStore,
	payments PaymentProvider,
	publisher Publisher,
	lookup ConnectionLookup,
	pending *PendingCommands,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		transactions: transactions,
		stations:     stations,
		payments:     payments,
		publisher:    publisher,
		lookup:       lookup,
		pending:      pending,
		logger:       logger,
	}
}

// RequestStart sends RemoteStartTransaction to the station holding the most
// recent Pending transaction. Completion is observed later through the
// acknowledgement; the call returns as soon as the frame is handed over.
func (e *Engine) RequestStart(ctx context.Context, stationID string) error {
	tx, err := e.transactions.FindPendingByStation(ctx, stationID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoPendingSession
	}
	if err != nil {
		return fmt.Errorf("service: find pending session: %w", err)
	}

	sender, ok := e.lookup(stationID)
	if !ok {
		return ErrStationUnreachable
	}

	uniqueID := idGenerator("remote_start")
	frame, err := ocpp.BuildCall(uniqueID, protocol.ActionRemoteStartTransaction, protocol.RemoteStartRequest{ConnectorID: 1})
	if err != nil {
		return fmt.Errorf("service: build start frame: %w", err)
	}

	e.pending.Put(uniqueID, PendingCommand{
		TransactionID: tx.ID,
		StationID:     stationID,
		Action:        protocol.ActionRemoteStartTransaction,
	})
	sender.Send(frame)

	e.logger.Info("remote start sent",
		zap.String("station_id", stationID),
		zap.Int64("transaction_id", tx.ID),
		zap.String("unique_id", uniqueID),
	)
	return nil
}

// RequestStop sends RemoteStopTransaction to the station holding the most
// recent Charging transaction.
func (e *Engine) RequestStop(ctx context.Context, stationID string) error {
	tx, err := e.transactions.FindChargingByStation(ctx, stationID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoActiveSession
	}
	if err != nil {
		return fmt.Errorf("service: find active session: %w", err)
	}

	sender, ok := e.lookup(stationID)
	if !ok {
		return ErrStationUnreachable
	}

	uniqueID := idGenerator("remote_stop")
	frame, err := ocpp.BuildCall(uniqueID, protocol.ActionRemoteStopTransaction, protocol.RemoteStopRequest{TransactionID: 1})
	if err != nil {
		return fmt.Errorf("service: build stop frame: %w", err)
	}

	e.pending.Put(uniqueID, PendingCommand{
		TransactionID: tx.ID,
		StationID:     stationID,
		Action:        protocol.ActionRemoteStopTransaction,
	})
	sender.Send(frame)

	e.logger.Info("remote stop sent",
		zap.String("station_id", stationID),
		zap.Int64("transaction_id", tx.ID),
		zap.String("unique_id", uniqueID),
	)
	return nil
}

// HandleCallResult consumes a CALLRESULT for a previously sent remote command.
// Unmatched results are logged and dropped. The correlation entry is consumed
// whether the station accepted or not.
func (e *Engine) HandleCallResult(ctx context.Context, stationID, uniqueID string, payload json.RawMessage) {
	cmd, ok := e.pending.Take(uniqueID)
	if !ok {
		e.logger.Warn("call result without pending command",
			zap.String("station_id", stationID), zap.String("unique_id", uniqueID))
		return
	}

	ack, err := ocpp.Decode[protocol.CommandAck](payload)
	if err != nil {
		e.logger.Warn("undecodable command ack",
			zap.String("station_id", stationID), zap.String("unique_id", uniqueID), zap.Error(err))
		return
	}

	if ack.Status != protocol.StatusAccepted {
		// No retry and no state change; the operator has to act on this.
		e.logger.Warn("remote command rejected",
			zap.String("station_id", cmd.StationID),
			zap.String("action", cmd.Action),
			zap.Int64("transaction_id", cmd.TransactionID),
			zap.String("status", ack.Status),
		)
		return
	}

	unlock := e.locks.lock(cmd.StationID)
	defer unlock()

	switch cmd.Action {
	case protocol.ActionRemoteStartTransaction:
		e.beginCharging(ctx, cmd)
	case protocol.ActionRemoteStopTransaction:
		e.completeCharging(ctx, cmd)
	default:
		e.logger.Warn("pending command with unknown action", zap.String("action", cmd.Action))
	}
}

// HandleCallError consumes a CALLERROR for a previously sent remote command.
// The transaction stays in its prior state.
func (e *Engine) HandleCallError(ctx context.Context, stationID, uniqueID, code, description string) {
	cmd, ok := e.pending.Take(uniqueID)
	if !ok {
		e.logger.Warn("call error without pending command",
			zap.String("station_id", stationID), zap.String("unique_id", uniqueID))
		return
	}

	e.logger.Warn("remote command failed",
		zap.String("station_id", cmd.StationID),
		zap.String("action", cmd.Action),
		zap.Int64("transaction_id", cmd.TransactionID),
		zap.String("error_code", code),
		zap.String("error_description", description),
	)
}

// HandleMeterReport folds an extracted reading into the station's Charging
// transaction and publishes a telemetry event. Stations with no active
// Charging transaction update nothing and emit nothing.
func (e *Engine) HandleMeterReport(ctx context.Context, stationID string, reading meter.Reading) error {
	unlock := e.locks.lock(stationID)
	defer unlock()

	tx, err := e.transactions.FindChargingByStation(ctx, stationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("service: find charging session: %w", err)
	}

	if reading.EnergyWh != nil {
		// The meter reports a cumulative register, so the session energy is
		// overwritten, not summed.
		tx.EnergyKWh = *reading.EnergyWh / 1000.0
		if err := e.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("service: update session energy: %w", err)
		}
	}

	if reading.Empty() && tx.EnergyKWh == 0 {
		return nil
	}

	e.publisher.Publish(telemetry.Event{
		StationID: stationID,
		EnergyWh:  reading.EnergyWh,
		PowerW:    reading.PowerW,
	})
	return nil
}

func (e *Engine) beginCharging(ctx context.Context, cmd PendingCommand) {
	tx, err := e.transactions.GetByID(ctx, cmd.TransactionID)
	if err != nil {
		e.logger.Error("load transaction for start ack failed",
			zap.Int64("transaction_id", cmd.TransactionID), zap.Error(err))
		return
	}
	if tx.Status != models.TxPending {
		e.logger.Warn("start ack for non-pending transaction",
			zap.Int64("transaction_id", tx.ID), zap.String("status", tx.Status))
		return
	}

	now := time.Now().UTC()
	tx.Status = models.TxCharging
	tx.StartedAt = &now
	if err := e.transactions.Update(ctx, tx); err != nil {
		e.logger.Error("update transaction to charging failed",
			zap.Int64("transaction_id", tx.ID), zap.Error(err))
		return
	}
	if err := e.stations.UpdateStatus(ctx, cmd.StationID, models.StationCharging); err != nil {
		e.logger.Error("update station status failed",
			zap.String("station_id", cmd.StationID), zap.Error(err))
	}

	e.logger.Info("charging started",
		zap.String("station_id", cmd.StationID), zap.Int64("transaction_id", tx.ID))
}

func (e *Engine) completeCharging(ctx context.Context, cmd PendingCommand) {
	tx, err := e.transactions.GetByID(ctx, cmd.TransactionID)
	if err != nil {
		e.logger.Error("load transaction for stop ack failed",
			zap.Int64("transaction_id", cmd.TransactionID), zap.Error(err))
		return
	}
	if tx.Status != models.TxCharging {
		e.logger.Warn("stop ack for non-charging transaction",
			zap.Int64("transaction_id", tx.ID), zap.String("status", tx.Status))
		return
	}

	station, err := e.stations.GetByID(ctx, cmd.StationID)
	if err != nil {
		e.logger.Error("load station for settlement failed",
			zap.String("station_id", cmd.StationID), zap.Error(err))
		return
	}

	finalEnergy := tx.EnergyKWh
	finalCost := finalEnergy * station.PricePerKWh
	refundAmount := tx.AmountAuthorized - finalCost
	if refundAmount < 0 {
		refundAmount = 0
	}

	if refundAmount > 0 {
		refundID, err := e.payments.Refund(ctx, tx.PaymentIntentID, refundAmount)
		if err != nil {
			// The station has already stopped delivering energy; a payment
			// outage must not keep the transaction open. The operator
			// reconciles missing refunds manually.
			e.logger.Error("refund failed",
				zap.Int64("transaction_id", tx.ID),
				zap.Float64("refund_amount", refundAmount),
				zap.Error(err),
			)
		} else {
			tx.RefundID = &refundID
		}
	}

	now := time.Now().UTC()
	tx.Status = models.TxCompleted
	tx.EndedAt = &now
	tx.FinalEnergyKWh = &finalEnergy
	tx.FinalCost = &finalCost
	if err := e.transactions.Update(ctx, tx); err != nil {
		e.logger.Error("update transaction to completed failed",
			zap.Int64("transaction_id", tx.ID), zap.Error(err))
		return
	}
	if err := e.stations.UpdateStatus(ctx, cmd.StationID, models.StationAvailable); err != nil {
		e.logger.Error("update station status failed",
			zap.String("station_id", cmd.StationID), zap.Error(err))
	}

	e.logger.Info("charging completed",
		zap.String("station_id", cmd.StationID),
		zap.Int64("transaction_id", tx.ID),
		zap.Float64("final_energy_kwh", finalEnergy),
		zap.Float64("final_cost", finalCost),
		zap.Float64("refund_amount", refundAmount),
	)
}

// stationLocks serializes mutations per station so a stop acknowledgement
// cannot race a fresh meter report for the same session.
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
