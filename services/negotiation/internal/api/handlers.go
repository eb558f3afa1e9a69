package api

import (
	"net/http"
	"sort"
	"strings"

	"dealroom/pkg/domain"
	"dealroom/pkg/httpx"
	"dealroom/services/negotiation/internal/engine"

	"github.com/go-chi/chi/v5"
)

type offerRequest struct {
	Amount  int64  `json:"amount"`
	Deposit int64  `json:"deposit"`
	Comment string `json:"comment"`
}

func (o offerRequest) input() domain.OfferInput {
	return domain.OfferInput{Amount: o.Amount, Deposit: o.Deposit, Comment: o.Comment}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellerID   string        `json:"seller_id"`
		PropertyID string        `json:"property_id"`
		Offer      *offerRequest `json:"offer"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	in := engine.CreateTransactionInput{SellerID: req.SellerID, PropertyID: req.PropertyID}
	if req.Offer != nil {
		o := req.Offer.input()
		in.Offer = &o
	}
	s.idempotent(w, r, "POST /transactions", func() (int, map[string]any, error) {
		tx, offer, err := s.engine.CreateTransaction(r.Context(), party(r), in)
		if err != nil {
			return 0, nil, err
		}
		return 201, envelope(r, "transaction", tx, "stage_name", tx.Stage.String(), "offer", offer), nil
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.engine.GetTransaction(r.Context(), chi.URLParam(r, "transaction_id"), party(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "transaction", tx, "stage_name", tx.Stage.String()))
}

// handleSetFields takes a flat object of field -> value. Fields are applied
// in name order so the same body always produces the same event.
func (s *Server) handleSetFields(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := httpx.ReadJSON(r, &body); err != nil {
		httpx.WriteError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	names := make([]string, 0, len(body))
	for k := range body {
		names = append(names, k)
	}
	sort.Strings(names)
	updates := make([]domain.FieldUpdate, 0, len(names))
	for _, k := range names {
		updates = append(updates, domain.FieldUpdate{Field: domain.Field(k), Value: body[k]})
	}
	tx, err := s.engine.SetFields(r.Context(), chi.URLParam(r, "transaction_id"), party(r), updates)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "transaction", tx, "stage_name", tx.Stage.String()))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "transaction_id")
	if _, err := s.engine.AdvanceStage(r.Context(), txID, party(r)); err != nil {
		writeFailure(w, r, err)
		return
	}
	tx, err := s.engine.GetTransaction(r.Context(), txID, party(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "transaction", tx, "stage_name", tx.Stage.String()))
}

// handleListOffers returns both ledgers, or one party's history when
// owner_id is given.
func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "transaction_id")
	if owner := strings.TrimSpace(r.URL.Query().Get("owner_id")); owner != "" {
		offers, err := s.engine.GetOffers(r.Context(), txID, party(r), owner)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		httpx.WriteJSON(w, 200, envelope(r, "offers", offers))
		return
	}
	ledger, err := s.engine.ListOffers(r.Context(), txID, party(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "buyer_offers", ledger.BuyerOffers, "seller_offers", ledger.SellerOffers))
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "transaction_id")
	var req offerRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	s.idempotent(w, r, "POST /transactions/"+txID+"/offers", func() (int, map[string]any, error) {
		offer, err := s.engine.CreateOffer(r.Context(), txID, party(r), req.input())
		if err != nil {
			return 0, nil, err
		}
		return 201, envelope(r, "offer", offer), nil
	})
}

func (s *Server) handleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offer_id")
	if err := s.engine.DeleteOffer(r.Context(), chi.URLParam(r, "transaction_id"), party(r), offerID); err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "deleted", true, "offer_id", offerID))
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := s.engine.ListContracts(r.Context(), chi.URLParam(r, "transaction_id"), party(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "contracts", contracts))
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	c, err := s.engine.CreateContract(r.Context(), chi.URLParam(r, "transaction_id"), party(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 201, envelope(r, "contract", c))
}

func (s *Server) handleDeleteContract(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "contract_id")
	if err := s.engine.DeleteContract(r.Context(), contractID, party(r)); err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "deleted", true, "contract_id", contractID))
}

func (s *Server) handleUpdateClause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value any `json:"value"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	cl, err := s.engine.UpdateClauseValue(r.Context(), chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), party(r), req.Value)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "clause", cl, "preview", cl.RenderPreview()))
}

func (s *Server) handleDeleteClause(w http.ResponseWriter, r *http.Request) {
	clauseID := chi.URLParam(r, "clause_id")
	if err := s.engine.DeleteClause(r.Context(), chi.URLParam(r, "contract_id"), clauseID, party(r)); err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "deleted", true, "clause_id", clauseID))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.engine.ListEvents(r.Context(), chi.URLParam(r, "transaction_id"), party(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "events", events))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	pt := domain.PropertyType(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "property_type"))))
	clauses, err := domain.CatalogClauses(pt, s.now())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "property_type", pt, "clauses", clauses))
}
