package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"dealroom/pkg/domain"
)

type partiesKey struct {
	buyer, seller, property string
}

type idemKey struct {
	party, key, endpoint string
}

type idemRecord struct {
	status int
	body   map[string]any
}

type txState struct {
	tx        domain.Transaction
	offers    []domain.Offer
	contracts []domain.Contract
	events    []domain.Event
}

func (s *txState) clone() *txState {
	out := &txState{
		tx:        cloneTransaction(s.tx),
		offers:    append([]domain.Offer(nil), s.offers...),
		contracts: make([]domain.Contract, len(s.contracts)),
		events:    append([]domain.Event(nil), s.events...),
	}
	for i, c := range s.contracts {
		out.contracts[i] = cloneContract(c)
	}
	return out
}

type txEntry struct {
	mu    sync.Mutex
	state *txState
}

// Memory keeps everything in process. Each transaction has its own mutex;
// Update works on a copy and swaps it in on success.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*txEntry
	byParties  map[partiesKey]string
	contractTx map[string]string
	idem       map[idemKey]idemRecord
	seq        atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{
		entries:    map[string]*txEntry{},
		byParties:  map[partiesKey]string{},
		contractTx: map[string]string{},
		idem:       map[idemKey]idemRecord{},
	}
}

func (m *Memory) CreateTransaction(_ context.Context, tx domain.Transaction, initial domain.Offer, events []domain.Event, onCommit func()) error {
	m.mu.Lock()
	key := partiesKey{tx.BuyerID, tx.SellerID, tx.PropertyID}
	if existing, ok := m.byParties[key]; ok {
		m.mu.Unlock()
		return domain.Conflictf("transaction %s already exists for this buyer, seller and property", existing)
	}
	if _, ok := m.entries[tx.TransactionID]; ok {
		m.mu.Unlock()
		return domain.Conflictf("transaction %s already exists", tx.TransactionID)
	}
	initial.Seq = m.seq.Add(1)
	e := &txEntry{state: &txState{
		tx:     cloneTransaction(tx),
		offers: []domain.Offer{initial},
		events: append([]domain.Event(nil), events...),
	}}
	// Held until onCommit returns so the first Update queues behind it.
	e.mu.Lock()
	defer e.mu.Unlock()
	m.entries[tx.TransactionID] = e
	m.byParties[key] = tx.TransactionID
	m.mu.Unlock()
	if onCommit != nil {
		onCommit()
	}
	return nil
}

func (m *Memory) entry(transactionID string) (*txEntry, error) {
	m.mu.RLock()
	e, ok := m.entries[transactionID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.NotFoundf("transaction %s not found", transactionID)
	}
	return e, nil
}

func (m *Memory) snapshot(transactionID string) (*txState, error) {
	e, err := m.entry(transactionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone(), nil
}

func (m *Memory) GetTransaction(_ context.Context, transactionID string) (domain.Transaction, error) {
	st, err := m.snapshot(transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return st.tx, nil
}

func (m *Memory) TransactionIDForContract(_ context.Context, contractID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.contractTx[contractID]
	if !ok {
		return "", domain.NotFoundf("contract %s not found", contractID)
	}
	return id, nil
}

func (m *Memory) ListOffers(_ context.Context, transactionID string) ([]domain.Offer, error) {
	st, err := m.snapshot(transactionID)
	if err != nil {
		return nil, err
	}
	return st.offers, nil
}

func (m *Memory) ListContracts(_ context.Context, transactionID string) ([]domain.Contract, error) {
	st, err := m.snapshot(transactionID)
	if err != nil {
		return nil, err
	}
	return st.contracts, nil
}

func (m *Memory) ListEvents(_ context.Context, transactionID string) ([]domain.Event, error) {
	st, err := m.snapshot(transactionID)
	if err != nil {
		return nil, err
	}
	return st.events, nil
}

func (m *Memory) Update(ctx context.Context, transactionID string, fn func(u Unit) error) error {
	e, err := m.entry(transactionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	u := &memUnit{m: m, st: e.state.clone()}
	if err := fn(u); err != nil {
		return err
	}

	m.mu.Lock()
	for _, c := range e.state.contracts {
		delete(m.contractTx, c.ContractID)
	}
	for _, c := range u.st.contracts {
		m.contractTx[c.ContractID] = transactionID
	}
	m.mu.Unlock()
	e.state = u.st
	runHooks(u.hooks)
	return nil
}

func (m *Memory) GetIdempotencyRecord(_ context.Context, partyID, key, endpoint string) (int, map[string]any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.idem[idemKey{partyID, key, endpoint}]
	if !ok {
		return 0, nil, false, nil
	}
	return rec.status, rec.body, true, nil
}

func (m *Memory) SaveIdempotencyRecord(_ context.Context, partyID, key, endpoint string, status int, body map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idemKey{partyID, key, endpoint}
	if _, ok := m.idem[k]; !ok {
		m.idem[k] = idemRecord{status: status, body: body}
	}
	return nil
}

type memUnit struct {
	m     *Memory
	st    *txState
	hooks []func()
}

func (u *memUnit) Transaction() domain.Transaction { return cloneTransaction(u.st.tx) }

func (u *memUnit) Offers() ([]domain.Offer, error) {
	return append([]domain.Offer(nil), u.st.offers...), nil
}

func (u *memUnit) Contracts() ([]domain.Contract, error) {
	out := make([]domain.Contract, len(u.st.contracts))
	for i, c := range u.st.contracts {
		out[i] = cloneContract(c)
	}
	return out, nil
}

func (u *memUnit) SaveTransaction(tx domain.Transaction) error {
	if tx.TransactionID != u.st.tx.TransactionID {
		return domain.InternalInvariantf("unit for %s cannot save transaction %s", u.st.tx.TransactionID, tx.TransactionID)
	}
	u.st.tx = cloneTransaction(tx)
	return nil
}

func (u *memUnit) InsertOffer(o domain.Offer) error {
	o.Seq = u.m.seq.Add(1)
	u.st.offers = append(u.st.offers, o)
	return nil
}

func (u *memUnit) DeleteOffer(offerID string) error {
	for i, o := range u.st.offers {
		if o.OfferID == offerID {
			u.st.offers = append(u.st.offers[:i:i], u.st.offers[i+1:]...)
			return nil
		}
	}
	return domain.NotFoundf("offer %s not found", offerID)
}

func (u *memUnit) InsertContract(c domain.Contract) error {
	for _, existing := range u.st.contracts {
		if existing.OwnerID == c.OwnerID {
			return domain.Conflictf("party %s already has contract %s on this transaction", c.OwnerID, existing.ContractID)
		}
	}
	u.st.contracts = append(u.st.contracts, cloneContract(c))
	sort.SliceStable(u.st.contracts, func(i, j int) bool {
		return u.st.contracts[i].CreatedAt.Before(u.st.contracts[j].CreatedAt)
	})
	return nil
}

func (u *memUnit) DeleteContract(contractID string) error {
	for i, c := range u.st.contracts {
		if c.ContractID == contractID {
			u.st.contracts = append(u.st.contracts[:i:i], u.st.contracts[i+1:]...)
			return nil
		}
	}
	return domain.NotFoundf("contract %s not found", contractID)
}

func (u *memUnit) findClause(clauseID string) (int, int, bool) {
	for ci, c := range u.st.contracts {
		if _, idx, ok := c.Clause(clauseID); ok {
			return ci, idx, true
		}
	}
	return -1, -1, false
}

func (u *memUnit) SetClauseValue(clauseID string, v domain.ClauseValue) error {
	ci, idx, ok := u.findClause(clauseID)
	if !ok {
		return domain.NotFoundf("clause %s not found", clauseID)
	}
	cl := u.st.contracts[ci].Clauses[idx]
	cl.Value = v
	u.st.contracts[ci].Clauses[idx] = cloneClause(cl)
	return nil
}

func (u *memUnit) DeleteClause(clauseID string) error {
	ci, idx, ok := u.findClause(clauseID)
	if !ok {
		return domain.NotFoundf("clause %s not found", clauseID)
	}
	clauses := u.st.contracts[ci].Clauses
	u.st.contracts[ci].Clauses = append(clauses[:idx:idx], clauses[idx+1:]...)
	return nil
}

func (u *memUnit) AppendEvents(events ...domain.Event) error {
	u.st.events = append(u.st.events, events...)
	return nil
}

func (u *memUnit) AfterCommit(fn func()) { u.hooks = append(u.hooks, fn) }
