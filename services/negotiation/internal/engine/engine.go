// Package engine runs the negotiation between a buyer and a seller: the
// stage machine, the offer ledger, both parties' contracts and the agreement
// check between them. Every mutation executes inside the store's
// per-transaction critical section and commits as one unit.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dealroom/pkg/domain"
	"dealroom/services/negotiation/internal/metrics"
	"dealroom/services/negotiation/internal/store"

	"github.com/google/uuid"
)

// PropertyResolver answers who owns a property and what kind it is.
type PropertyResolver interface {
	ResolveProperty(ctx context.Context, propertyID string) (domain.Property, error)
}

// ClosingFactory opens the closing process for a transaction and returns
// its id.
type ClosingFactory interface {
	CreateClosing(ctx context.Context, req domain.ClosingRequest) (string, error)
}

// Publisher forwards committed events downstream.
type Publisher interface {
	Publish(ctx context.Context, events []domain.Event) error
}

type Deps struct {
	Store      store.Store
	Properties PropertyResolver
	Closing    ClosingFactory
	Publisher  Publisher
	Metrics    *metrics.Metrics
	Log        *slog.Logger
	Now        func() time.Time
}

type Engine struct {
	store      store.Store
	properties PropertyResolver
	closing    ClosingFactory
	publisher  Publisher
	metrics    *metrics.Metrics
	log        *slog.Logger
	now        func() time.Time
}

func New(d Deps) *Engine {
	e := &Engine{
		store:      d.Store,
		properties: d.Properties,
		closing:    d.Closing,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		log:        d.Log,
		now:        d.Now,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func newID(prefix string) string { return prefix + "_" + uuid.NewString() }

func (e *Engine) event(transactionID string, typ domain.EventType, actorID string, payload map[string]any) domain.Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return domain.Event{
		EventID:       newID("evt"),
		TransactionID: transactionID,
		Type:          typ,
		ActorID:       actorID,
		Payload:       payload,
		CreatedAt:     e.now().UTC(),
	}
}

// observe records the outcome of an engine operation. Invariant failures
// are defects and are logged as such.
func (e *Engine) observe(op, transactionID string, err error) {
	if err == nil {
		e.metrics.Operation(op, "ok")
		return
	}
	kind := domain.KindOf(err)
	switch kind {
	case "":
		e.metrics.Operation(op, "error")
		e.log.Error("operation_failed", slog.String("op", op), slog.String("transaction_id", transactionID), slog.Any("err", err))
	case domain.KindInternalInvariant:
		e.metrics.Operation(op, strings.ToLower(string(kind)))
		e.metrics.InvariantFailure()
		e.log.Error("invariant_violation", slog.String("op", op), slog.String("transaction_id", transactionID), slog.Any("err", err))
	default:
		e.metrics.Operation(op, strings.ToLower(string(kind)))
		e.log.Debug("operation_rejected", slog.String("op", op), slog.String("transaction_id", transactionID), slog.Any("err", err))
	}
}

// commit appends events to u and hands them to committed once u commits,
// while the transaction is still locked, so publish order follows commit
// order.
func (e *Engine) commit(ctx context.Context, u store.Unit, events []domain.Event) error {
	if err := u.AppendEvents(events...); err != nil {
		return err
	}
	u.AfterCommit(func() { e.committed(ctx, events) })
	return nil
}

// committed runs after a successful commit: it logs and counts the state
// changes and hands the events to the publisher.
func (e *Engine) committed(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		switch ev.Type {
		case domain.EventStageAdvanced:
			to, _ := ev.Payload["to"].(string)
			e.metrics.StageAdvanced(to)
			e.log.Info("stage_advanced", slog.String("transaction_id", ev.TransactionID), slog.String("to", to), slog.String("actor", ev.ActorID))
		case domain.EventContractsEqualChanged:
			equal, _ := ev.Payload["contracts_equal"].(bool)
			e.metrics.ContractsEqualChanged(equal)
			e.log.Info("contracts_equal_changed", slog.String("transaction_id", ev.TransactionID), slog.Bool("contracts_equal", equal))
		}
	}
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, events); err != nil {
		e.log.Warn("event_publish_failed", slog.String("transaction_id", events[0].TransactionID), slog.Any("err", err))
	}
}

// participant loads the transaction and checks partyID is one of its two
// parties.
func (e *Engine) participant(ctx context.Context, transactionID, partyID string) (domain.Transaction, error) {
	tx, err := e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !tx.IsParticipant(partyID) {
		return domain.Transaction{}, domain.Permissionf("party %s is not a participant in transaction %s", partyID, transactionID)
	}
	return tx, nil
}

func requireParticipant(tx domain.Transaction, partyID string) error {
	if !tx.IsParticipant(partyID) {
		return domain.Permissionf("party %s is not a participant in transaction %s", partyID, tx.TransactionID)
	}
	return nil
}
