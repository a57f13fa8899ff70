package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"chargepilot/internal/meter"
	"chargepilot/internal/models"
	"chargepilot/internal/ocpp"
	"chargepilot/internal/ocpp/protocol"
	"chargepilot/internal/repository"
	"chargepilot/internal/telemetry"
)

type fakeTxStore struct {
	mu   sync.Mutex
	byID map[int64]*models.Transaction
}

func newFakeTxStore(txs ...*models.Transaction) *fakeTxStore {
	store := &fakeTxStore{byID: make(map[int64]*models.Transaction)}
	for _, tx := range txs {
		copied := *tx
		store.byID[tx.ID] = &copied
	}
	return store
}

func (s *fakeTxStore) GetByID(_ context.Context, id int64) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *tx
	return &copied, nil
}

func (s *fakeTxStore) FindPendingByStation(_ context.Context, stationID string) (*models.Transaction, error) {
	return s.findLatest(stationID, models.TxPending)
}

func (s *fakeTxStore) FindChargingByStation(_ context.Context, stationID string) (*models.Transaction, error) {
	return s.findLatest(stationID, models.TxCharging)
}

func (s *fakeTxStore) Update(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *tx
	s.byID[tx.ID] = &copied
	return nil
}

func (s *fakeTxStore) findLatest(stationID, status string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Transaction
	for _, tx := range s.byID {
		if tx.StationID != stationID || tx.Status != status {
			continue
		}
		if latest == nil || tx.ID > latest.ID {
			latest = tx
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *fakeTxStore) get(t *testing.T, id int64) models.Transaction {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok {
		t.Fatalf("transaction %d not found", id)
	}
	return *tx
}

type fakeStationStore struct {
	mu       sync.Mutex
	stations map[string]*models.Station
}

func newFakeStationStore(stations ...*models.Station) *fakeStationStore {
	store := &fakeStationStore{stations: make(map[string]*models.Station)}
	for _, st := range stations {
		copied := *st
		store.stations[st.ID] = &copied
	}
	return store
}

func (s *fakeStationStore) GetByID(_ context.Context, stationID string) (*models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[stationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *st
	return &copied, nil
}

func (s *fakeStationStore) UpdateStatus(_ context.Context, stationID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stations[stationID]; ok {
		st.Status = status
	}
	return nil
}

func (s *fakeStationStore) status(t *testing.T, stationID string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[stationID]
	if !ok {
		t.Fatalf("station %s not found", stationID)
	}
	return st.Status
}

type refundCall struct {
	paymentIntentID string
	amount          float64
}

type fakePayments struct {
	mu      sync.Mutex
	refunds []refundCall
	err     error
}

func (p *fakePayments) Refund(_ context.Context, paymentIntentID string, amount float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, refundCall{paymentIntentID, amount})
	if p.err != nil {
		return "", p.err
	}
	return "re_test_1", nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (p *fakePublisher) Publish(event telemetry.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *fakeSender) Send(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, msg)
}

func (s *fakeSender) frameAt(t *testing.T, index int) *ocpp.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= len(s.frames) {
		t.Fatalf("no frame at index %d, have %d", index, len(s.frames))
	}
	msg, err := ocpp.NewParser().Parse(s.frames[index])
	if err != nil {
		t.Fatalf("parse sent frame: %v", err)
	}
	return msg
}

type engineFixture struct {
	engine    *Engine
	txs       *fakeTxStore
	stations  *fakeStationStore
	payments  *fakePayments
	publisher *fakePublisher
	pending   *PendingCommands
	sender    *fakeSender
	connected map[string]bool
}

func newEngineFixture(txs *fakeTxStore, stations *fakeStationStore) *engineFixture {
	f := &engineFixture{
		txs:       txs,
		stations:  stations,
		payments:  &fakePayments{},
		publisher: &fakePublisher{},
		pending:   NewPendingCommands(),
		sender:    &fakeSender{},
		connected: make(map[string]bool),
	}
	lookup := func(stationID string) (FrameSender, bool) {
		if !f.connected[stationID] {
			return nil, false
		}
		return f.sender, true
	}
	f.engine = NewEngine(txs, stations, f.payments, f.publisher, lookup, f.pending, zap.NewNop())
	return f
}

func stubIDs(t *testing.T, ids ...string) {
	t.Helper()
	original := idGenerator
	queue := ids
	idGenerator = func(prefix string) string {
		if len(queue) == 0 {
			return original(prefix)
		}
		id := queue[0]
		queue = queue[1:]
		return id
	}
	t.Cleanup(func() { idGenerator = original })
}

func TestRequestStartNoPendingSession(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(), newFakeStationStore())
	f.connected["cp-1"] = true

	if err := f.engine.RequestStart(context.Background(), "cp-1"); !errors.Is(err, ErrNoPendingSession) {
		t.Fatalf("expected ErrNoPendingSession, got %v", err)
	}
	if f.pending.Len() != 0 {
		t.Fatalf("expected no correlation entry, got %d", f.pending.Len())
	}
}

func TestRequestStartStationUnreachable(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 1, StationID: "cp-1", Status: models.TxPending},
	), newFakeStationStore())

	if err := f.engine.RequestStart(context.Background(), "cp-1"); !errors.Is(err, ErrStationUnreachable) {
		t.Fatalf("expected ErrStationUnreachable, got %v", err)
	}
	if f.pending.Len() != 0 {
		t.Fatalf("unreachable station must not leave a correlation entry, got %d", f.pending.Len())
	}
}

func TestRequestStartSendsFrame(t *testing.T) {
	stubIDs(t, "start-1")
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 5, StationID: "cp-1", Status: models.TxPending},
	), newFakeStationStore())
	f.connected["cp-1"] = true

	if err := f.engine.RequestStart(context.Background(), "cp-1"); err != nil {
		t.Fatalf("request start: %v", err)
	}

	msg := f.sender.frameAt(t, 0)
	if msg.MessageType != ocpp.MessageTypeCall {
		t.Fatalf("expected CALL frame, got %d", msg.MessageType)
	}
	if msg.Action != protocol.ActionRemoteStartTransaction {
		t.Fatalf("expected RemoteStartTransaction, got %s", msg.Action)
	}
	if msg.UniqueID != "start-1" {
		t.Fatalf("expected unique id start-1, got %s", msg.UniqueID)
	}

	var payload protocol.RemoteStartRequest
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ConnectorID != 1 {
		t.Fatalf("expected fixed connector id 1, got %d", payload.ConnectorID)
	}

	cmd, ok := f.pending.Take("start-1")
	if !ok {
		t.Fatalf("expected correlation entry for start-1")
	}
	if cmd.TransactionID != 5 || cmd.Action != protocol.ActionRemoteStartTransaction {
		t.Fatalf("unexpected correlation entry: %+v", cmd)
	}
}

func TestRequestStopSelectsChargingSession(t *testing.T) {
	stubIDs(t, "stop-1")
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 2, StationID: "cp-1", Status: models.TxCharging},
	), newFakeStationStore())
	f.connected["cp-1"] = true

	if err := f.engine.RequestStop(context.Background(), "cp-1"); err != nil {
		t.Fatalf("request stop: %v", err)
	}

	msg := f.sender.frameAt(t, 0)
	if msg.Action != protocol.ActionRemoteStopTransaction {
		t.Fatalf("expected RemoteStopTransaction, got %s", msg.Action)
	}

	var payload protocol.RemoteStopRequest
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TransactionID != 1 {
		t.Fatalf("expected fixed transaction id 1, got %d", payload.TransactionID)
	}
}

func TestRequestStopNoActiveSession(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 2, StationID: "cp-1", Status: models.TxPending},
	), newFakeStationStore())
	f.connected["cp-1"] = true

	if err := f.engine.RequestStop(context.Background(), "cp-1"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestStartAckAcceptedMovesToCharging(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 3, StationID: "cp-1", Status: models.TxPending},
	), newFakeStationStore(
		&models.Station{ID: "cp-1", Status: models.StationAvailable, PricePerKWh: 2.5},
	))
	f.pending.Put("u-1", PendingCommand{TransactionID: 3, StationID: "cp-1", Action: protocol.ActionRemoteStartTransaction})

	f.engine.HandleCallResult(context.Background(), "cp-1", "u-1", json.RawMessage(`{"status": "Accepted"}`))

	tx := f.txs.get(t, 3)
	if tx.Status != models.TxCharging {
		t.Fatalf("expected Charging, got %s", tx.Status)
	}
	if tx.StartedAt == nil {
		t.Fatalf("expected start time to be set")
	}
	if got := f.stations.status(t, "cp-1"); got != models.StationCharging {
		t.Fatalf("expected station Charging, got %s", got)
	}
	if f.pending.Len() != 0 {
		t.Fatalf("expected correlation entry consumed")
	}
}

func TestStartAckRejectedLeavesStateUnchanged(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 3, StationID: "cp-1", Status: models.TxPending},
	), newFakeStationStore(
		&models.Station{ID: "cp-1", Status: models.StationAvailable, PricePerKWh: 2.5},
	))
	f.pending.Put("u-1", PendingCommand{TransactionID: 3, StationID: "cp-1", Action: protocol.ActionRemoteStartTransaction})

	f.engine.HandleCallResult(context.Background(), "cp-1", "u-1", json.RawMessage(`{"status": "Rejected"}`))

	tx := f.txs.get(t, 3)
	if tx.Status != models.TxPending {
		t.Fatalf("expected transaction to stay Pending, got %s", tx.Status)
	}
	if got := f.stations.status(t, "cp-1"); got != models.StationAvailable {
		t.Fatalf("expected station to stay Available, got %s", got)
	}
	if f.pending.Len() != 0 {
		t.Fatalf("rejected ack must still consume the correlation entry")
	}
}

func TestCallErrorConsumesEntryWithoutTransition(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 3, StationID: "cp-1", Status: models.TxCharging},
	), newFakeStationStore(
		&models.Station{ID: "cp-1", Status: models.StationCharging, PricePerKWh: 2.5},
	))
	f.pending.Put("u-2", PendingCommand{TransactionID: 3, StationID: "cp-1", Action: protocol.ActionRemoteStopTransaction})

	f.engine.HandleCallError(context.Background(), "cp-1", "u-2", "InternalError", "station fault")

	tx := f.txs.get(t, 3)
	if tx.Status != models.TxCharging {
		t.Fatalf("expected transaction to stay Charging, got %s", tx.Status)
	}
	if f.pending.Len() != 0 {
		t.Fatalf("call error must consume the correlation entry")
	}
}

func TestUnmatchedCallResultIsIgnored(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(), newFakeStationStore())
	f.engine.HandleCallResult(context.Background(), "cp-1", "ghost", json.RawMessage(`{"status": "Accepted"}`))
}

func TestMeterReportUpdatesChargingSession(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 4, StationID: "cp-1", Status: models.TxCharging},
	), newFakeStationStore())

	energy := 5000.0
	if err := f.engine.HandleMeterReport(context.Background(), "cp-1", meter.Reading{EnergyWh: &energy}); err != nil {
		t.Fatalf("handle meter report: %v", err)
	}

	tx := f.txs.get(t, 4)
	if tx.EnergyKWh != 5.0 {
		t.Fatalf("expected 5.0 kWh, got %f", tx.EnergyKWh)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("expected 1 telemetry event, got %d", len(f.publisher.events))
	}
	event := f.publisher.events[0]
	if event.StationID != "cp-1" || event.EnergyWh == nil || *event.EnergyWh != 5000 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestMeterReportWithoutChargingSession(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 4, StationID: "cp-1", Status: models.TxPending},
	), newFakeStationStore())

	energy := 5000.0
	if err := f.engine.HandleMeterReport(context.Background(), "cp-1", meter.Reading{EnergyWh: &energy}); err != nil {
		t.Fatalf("handle meter report: %v", err)
	}

	tx := f.txs.get(t, 4)
	if tx.EnergyKWh != 0 {
		t.Fatalf("expected energy untouched, got %f", tx.EnergyKWh)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no telemetry events, got %d", len(f.publisher.events))
	}
}

func TestMeterReportEmptyReadingNotPublished(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 4, StationID: "cp-1", Status: models.TxCharging},
	), newFakeStationStore())

	if err := f.engine.HandleMeterReport(context.Background(), "cp-1", meter.Reading{}); err != nil {
		t.Fatalf("handle meter report: %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no event for empty reading on fresh session, got %d", len(f.publisher.events))
	}
}

func TestFullSessionSettlement(t *testing.T) {
	stubIDs(t, "start-1", "stop-1")
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 10, StationID: "cp-1", Status: models.TxPending, AmountAuthorized: 100.0, PaymentIntentID: "pi_100"},
	), newFakeStationStore(
		&models.Station{ID: "cp-1", Status: models.StationAvailable, PricePerKWh: 2.5},
	))
	f.connected["cp-1"] = true
	ctx := context.Background()

	if err := f.engine.RequestStart(ctx, "cp-1"); err != nil {
		t.Fatalf("request start: %v", err)
	}
	f.engine.HandleCallResult(ctx, "cp-1", "start-1", json.RawMessage(`{"status": "Accepted"}`))

	// Cumulative register: three identical reports overwrite, not add.
	energy := 10000.0
	for i := 0; i < 3; i++ {
		if err := f.engine.HandleMeterReport(ctx, "cp-1", meter.Reading{EnergyWh: &energy}); err != nil {
			t.Fatalf("meter report %d: %v", i, err)
		}
	}

	if err := f.engine.RequestStop(ctx, "cp-1"); err != nil {
		t.Fatalf("request stop: %v", err)
	}
	f.engine.HandleCallResult(ctx, "cp-1", "stop-1", json.RawMessage(`{"status": "Accepted"}`))

	tx := f.txs.get(t, 10)
	if tx.Status != models.TxCompleted {
		t.Fatalf("expected Completed, got %s", tx.Status)
	}
	if tx.FinalEnergyKWh == nil || *tx.FinalEnergyKWh != 10.0 {
		t.Fatalf("expected final energy 10.0 kWh, got %v", tx.FinalEnergyKWh)
	}
	if tx.FinalCost == nil || *tx.FinalCost != 25.0 {
		t.Fatalf("expected final cost 25.00, got %v", tx.FinalCost)
	}
	if tx.EndedAt == nil {
		t.Fatalf("expected end time to be set")
	}
	if tx.RefundID == nil || *tx.RefundID != "re_test_1" {
		t.Fatalf("expected refund reference, got %v", tx.RefundID)
	}

	if len(f.payments.refunds) != 1 {
		t.Fatalf("expected 1 refund call, got %d", len(f.payments.refunds))
	}
	refund := f.payments.refunds[0]
	if refund.paymentIntentID != "pi_100" || refund.amount != 75.0 {
		t.Fatalf("expected refund of 75.00 against pi_100, got %+v", refund)
	}

	if got := f.stations.status(t, "cp-1"); got != models.StationAvailable {
		t.Fatalf("expected station back to Available, got %s", got)
	}
	if f.pending.Len() != 0 {
		t.Fatalf("expected all correlation entries consumed, got %d", f.pending.Len())
	}
}

func TestSettlementRefundNeverNegative(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 11, StationID: "cp-1", Status: models.TxCharging, AmountAuthorized: 20.0, PaymentIntentID: "pi_20", EnergyKWh: 10.0},
	), newFakeStationStore(
		&models.Station{ID: "cp-1", Status: models.StationCharging, PricePerKWh: 2.5},
	))
	f.pending.Put("stop-2", PendingCommand{TransactionID: 11, StationID: "cp-1", Action: protocol.ActionRemoteStopTransaction})

	f.engine.HandleCallResult(context.Background(), "cp-1", "stop-2", json.RawMessage(`{"status": "Accepted"}`))

	tx := f.txs.get(t, 11)
	if tx.Status != models.TxCompleted {
		t.Fatalf("expected Completed, got %s", tx.Status)
	}
	if tx.FinalCost == nil || *tx.FinalCost != 25.0 {
		t.Fatalf("expected final cost 25.00, got %v", tx.FinalCost)
	}
	if len(f.payments.refunds) != 0 {
		t.Fatalf("energy exceeded the prepaid amount, no refund call expected, got %d", len(f.payments.refunds))
	}
	if tx.RefundID != nil {
		t.Fatalf("expected no refund reference, got %v", *tx.RefundID)
	}
}

func TestSettlementToleratesRefundFailure(t *testing.T) {
	f := newEngineFixture(newFakeTxStore(
		&models.Transaction{ID: 12, StationID: "cp-1", Status: models.TxCharging, AmountAuthorized: 50.0, PaymentIntentID: "pi_50", EnergyKWh: 4.0},
	), newFakeStationStore(
		&models.Station{ID: "cp-1", Status: models.StationCharging, PricePerKWh: 2.5},
	))
	f.payments.err = errors.New("provider outage")
	f.pending.Put("stop-3", PendingCommand{TransactionID: 12, StationID: "cp-1", Action: protocol.ActionRemoteStopTransaction})

	f.engine.HandleCallResult(context.Background(), "cp-1", "stop-3", json.RawMessage(`{"status": "Accepted"}`))

	tx := f.txs.get(t, 12)
	if tx.Status != models.TxCompleted {
		t.Fatalf("refund failure must not block completion, got %s", tx.Status)
	}
	if tx.RefundID != nil {
		t.Fatalf("expected no refund reference after failure, got %v", *tx.RefundID)
	}
	if got := f.stations.status(t, "cp-1"); got != models.StationAvailable {
		t.Fatalf("expected station released to Available, got %s", got)
	}
}

func TestUniqueIDsNeverRepeat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := idGenerator("remote_start")
		if seen[id] {
			t.Fatalf("duplicate unique id: %s", id)
		}
		seen[id] = true
	}
}
