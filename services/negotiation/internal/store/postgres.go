package store

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"

	"dealroom/pkg/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres locks the transactions row with SELECT ... FOR UPDATE for the
// duration of Update, which serializes both parties' writes. A striped
// in-process mutex is also held across commit and the AfterCommit hooks, so
// within one process hooks for a transaction run in commit order.
type Postgres struct {
	DB    *pgxpool.Pool
	locks [64]sync.Mutex
}

func (s *Postgres) lockFor(transactionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(transactionID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func NewPostgres(db *pgxpool.Pool) *Postgres { return &Postgres{DB: db} }

// querier is satisfied by both the pool and an open pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const transactionColumns = `transaction_id,buyer_id,seller_id,property_id,property_type,stage,
buyer_accepted_offer,seller_accepted_offer,buyer_accepted_contract,seller_accepted_contract,
contracts_equal,closing_id,closed_at,payment_ref,created_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var t domain.Transaction
	var stage int16
	err := row.Scan(&t.TransactionID, &t.BuyerID, &t.SellerID, &t.PropertyID, &t.PropertyType, &stage,
		&t.BuyerAcceptedOffer, &t.SellerAcceptedOffer, &t.BuyerAcceptedContract, &t.SellerAcceptedContract,
		&t.ContractsEqual, &t.ClosingID, &t.ClosedAt, &t.PaymentRef, &t.CreatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Stage = domain.Stage(stage)
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Postgres) CreateTransaction(ctx context.Context, t domain.Transaction, initial domain.Offer, events []domain.Event, onCommit func()) error {
	mu := s.lockFor(t.TransactionID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO transactions(transaction_id,buyer_id,seller_id,property_id,property_type,stage,created_at)
VALUES($1,$2,$3,$4,$5,$6,$7)
`, t.TransactionID, t.BuyerID, t.SellerID, t.PropertyID, string(t.PropertyType), int16(t.Stage), t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflictf("a transaction already exists for this buyer, seller and property")
		}
		return err
	}
	if err := insertOffer(ctx, tx, initial); err != nil {
		return err
	}
	if err := insertEvents(ctx, tx, events); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if onCommit != nil {
		onCommit()
	}
	return nil
}

func (s *Postgres) GetTransaction(ctx context.Context, transactionID string) (domain.Transaction, error) {
	t, err := scanTransaction(s.DB.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id=$1`, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, domain.NotFoundf("transaction %s not found", transactionID)
	}
	return t, err
}

func (s *Postgres) TransactionIDForContract(ctx context.Context, contractID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `SELECT transaction_id FROM contracts WHERE contract_id=$1`, contractID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.NotFoundf("contract %s not found", contractID)
	}
	return id, err
}

func (s *Postgres) ListOffers(ctx context.Context, transactionID string) ([]domain.Offer, error) {
	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	return listOffers(ctx, s.DB, transactionID)
}

func (s *Postgres) ListContracts(ctx context.Context, transactionID string) ([]domain.Contract, error) {
	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	return listContracts(ctx, s.DB, transactionID)
}

func (s *Postgres) ListEvents(ctx context.Context, transactionID string) ([]domain.Event, error) {
	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, `
SELECT event_id,transaction_id,event_type,actor_id,payload,created_at
FROM transaction_events
WHERE transaction_id=$1
ORDER BY seq ASC
`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload []byte
		if err := rows.Scan(&e.EventID, &e.TransactionID, &e.Type, &e.ActorID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, transactionID string, fn func(u Unit) error) error {
	mu := s.lockFor(transactionID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	locked, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id=$1 FOR UPDATE`, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFoundf("transaction %s not found", transactionID)
		}
		return err
	}
	u := &pgUnit{ctx: ctx, tx: tx, txn: locked}
	if err := fn(u); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	runHooks(u.hooks)
	return nil
}

func (s *Postgres) GetIdempotencyRecord(ctx context.Context, partyID, key, endpoint string) (int, map[string]any, bool, error) {
	var status int
	var body []byte
	err := s.DB.QueryRow(ctx, `
SELECT response_status,response_body
FROM idempotency_records
WHERE party_id=$1 AND idempotency_key=$2 AND endpoint=$3
`, partyID, key, endpoint).Scan(&status, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, nil, false, err
	}
	return status, out, true, nil
}

func (s *Postgres) SaveIdempotencyRecord(ctx context.Context, partyID, key, endpoint string, status int, body map[string]any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO idempotency_records(party_id,idempotency_key,endpoint,response_status,response_body)
VALUES($1,$2,$3,$4,$5::jsonb)
ON CONFLICT (party_id,idempotency_key,endpoint) DO NOTHING
`, partyID, key, endpoint, status, string(b))
	return err
}

type pgUnit struct {
	ctx   context.Context
	tx    pgx.Tx
	txn   domain.Transaction
	hooks []func()
}

func (u *pgUnit) Transaction() domain.Transaction { return cloneTransaction(u.txn) }

func (u *pgUnit) Offers() ([]domain.Offer, error) { return listOffers(u.ctx, u.tx, u.txn.TransactionID) }

func (u *pgUnit) Contracts() ([]domain.Contract, error) {
	return listContracts(u.ctx, u.tx, u.txn.TransactionID)
}

func (u *pgUnit) SaveTransaction(t domain.Transaction) error {
	if t.TransactionID != u.txn.TransactionID {
		return domain.InternalInvariantf("unit for %s cannot save transaction %s", u.txn.TransactionID, t.TransactionID)
	}
	_, err := u.tx.Exec(u.ctx, `
UPDATE transactions
SET stage=$2,
    buyer_accepted_offer=$3,
    seller_accepted_offer=$4,
    buyer_accepted_contract=$5,
    seller_accepted_contract=$6,
    contracts_equal=$7,
    closing_id=$8,
    closed_at=$9,
    payment_ref=$10
WHERE transaction_id=$1
`, t.TransactionID, int16(t.Stage), t.BuyerAcceptedOffer, t.SellerAcceptedOffer, t.BuyerAcceptedContract,
		t.SellerAcceptedContract, t.ContractsEqual, t.ClosingID, t.ClosedAt, t.PaymentRef)
	if err != nil {
		return err
	}
	u.txn = cloneTransaction(t)
	return nil
}

func (u *pgUnit) InsertOffer(o domain.Offer) error { return insertOffer(u.ctx, u.tx, o) }

func (u *pgUnit) DeleteOffer(offerID string) error {
	tag, err := u.tx.Exec(u.ctx, `DELETE FROM offers WHERE offer_id=$1 AND transaction_id=$2`, offerID, u.txn.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("offer %s not found", offerID)
	}
	return nil
}

func (u *pgUnit) InsertContract(c domain.Contract) error {
	_, err := u.tx.Exec(u.ctx, `
INSERT INTO contracts(contract_id,transaction_id,owner_id,created_at)
VALUES($1,$2,$3,$4)
`, c.ContractID, c.TransactionID, c.OwnerID, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflictf("party %s already has a contract on this transaction", c.OwnerID)
		}
		return err
	}
	batch := &pgx.Batch{}
	for i, cl := range c.Clauses {
		value, err := json.Marshal(cl.Value)
		if err != nil {
			return err
		}
		options, err := json.Marshal(nonNil(cl.Options))
		if err != nil {
			return err
		}
		batch.Queue(`
INSERT INTO clauses(clause_id,contract_id,position,clause_key,title,kind,category,prompt,explanation,preview,required,text_type,options,value)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::jsonb,$14::jsonb)
`, cl.ClauseID, c.ContractID, i, cl.Key, cl.Title, string(cl.Kind), string(cl.Category), cl.Prompt,
			cl.Explanation, cl.Preview, cl.Required, string(cl.TextType), string(options), string(value))
	}
	return u.tx.SendBatch(u.ctx, batch).Close()
}

func (u *pgUnit) DeleteContract(contractID string) error {
	tag, err := u.tx.Exec(u.ctx, `DELETE FROM contracts WHERE contract_id=$1 AND transaction_id=$2`, contractID, u.txn.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("contract %s not found", contractID)
	}
	return nil
}

func (u *pgUnit) SetClauseValue(clauseID string, v domain.ClauseValue) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tag, err := u.tx.Exec(u.ctx, `
UPDATE clauses SET value=$2::jsonb
WHERE clause_id=$1
  AND contract_id IN (SELECT contract_id FROM contracts WHERE transaction_id=$3)
`, clauseID, string(b), u.txn.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("clause %s not found", clauseID)
	}
	return nil
}

func (u *pgUnit) DeleteClause(clauseID string) error {
	tag, err := u.tx.Exec(u.ctx, `
DELETE FROM clauses
WHERE clause_id=$1
  AND contract_id IN (SELECT contract_id FROM contracts WHERE transaction_id=$2)
`, clauseID, u.txn.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("clause %s not found", clauseID)
	}
	return nil
}

func (u *pgUnit) AppendEvents(events ...domain.Event) error {
	return insertEvents(u.ctx, u.tx, events)
}

func (u *pgUnit) AfterCommit(fn func()) { u.hooks = append(u.hooks, fn) }

func insertOffer(ctx context.Context, q querier, o domain.Offer) error {
	_, err := q.Exec(ctx, `
INSERT INTO offers(offer_id,transaction_id,owner_id,amount,deposit,comment,created_at)
VALUES($1,$2,$3,$4,$5,$6,$7)
`, o.OfferID, o.TransactionID, o.OwnerID, o.Amount, o.Deposit, o.Comment, o.CreatedAt)
	return err
}

func insertEvents(ctx context.Context, q querier, events []domain.Event) error {
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `
INSERT INTO transaction_events(event_id,transaction_id,event_type,actor_id,payload,created_at)
VALUES($1,$2,$3,$4,$5::jsonb,$6)
`, e.EventID, e.TransactionID, string(e.Type), e.ActorID, string(payload), e.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func listOffers(ctx context.Context, q querier, transactionID string) ([]domain.Offer, error) {
	rows, err := q.Query(ctx, `
SELECT offer_id,transaction_id,owner_id,amount,deposit,comment,seq,created_at
FROM offers
WHERE transaction_id=$1
ORDER BY created_at DESC, seq DESC
`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(&o.OfferID, &o.TransactionID, &o.OwnerID, &o.Amount, &o.Deposit, &o.Comment, &o.Seq, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func listContracts(ctx context.Context, q querier, transactionID string) ([]domain.Contract, error) {
	rows, err := q.Query(ctx, `
SELECT contract_id,transaction_id,owner_id,created_at
FROM contracts
WHERE transaction_id=$1
ORDER BY created_at ASC, contract_id ASC
`, transactionID)
	if err != nil {
		return nil, err
	}
	var contracts []domain.Contract
	index := map[string]int{}
	for rows.Next() {
		var c domain.Contract
		if err := rows.Scan(&c.ContractID, &c.TransactionID, &c.OwnerID, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		c.Clauses = []domain.Clause{}
		index[c.ContractID] = len(contracts)
		contracts = append(contracts, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return contracts, nil
	}

	clauseRows, err := q.Query(ctx, `
SELECT cl.clause_id,cl.contract_id,cl.clause_key,cl.title,cl.kind,cl.category,cl.prompt,cl.explanation,
       cl.preview,cl.required,cl.text_type,cl.options,cl.value
FROM clauses cl
JOIN contracts c ON c.contract_id=cl.contract_id
WHERE c.transaction_id=$1
ORDER BY cl.contract_id, cl.position
`, transactionID)
	if err != nil {
		return nil, err
	}
	defer clauseRows.Close()
	for clauseRows.Next() {
		var cl domain.Clause
		var options, value []byte
		if err := clauseRows.Scan(&cl.ClauseID, &cl.ContractID, &cl.Key, &cl.Title, &cl.Kind, &cl.Category, &cl.Prompt,
			&cl.Explanation, &cl.Preview, &cl.Required, &cl.TextType, &options, &value); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(options, &cl.Options); err != nil {
			return nil, err
		}
		if len(cl.Options) == 0 {
			cl.Options = nil
		}
		if err := json.Unmarshal(value, &cl.Value); err != nil {
			return nil, err
		}
		i, ok := index[cl.ContractID]
		if !ok {
			continue
		}
		contracts[i].Clauses = append(contracts[i].Clauses, cl)
	}
	return contracts, clauseRows.Err()
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
