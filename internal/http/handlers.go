package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleReady fails while the store is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Ready(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// handleListTransactions lists everything, or one type when ?type is set.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := core.ParseTransactionType(raw)
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		s.writeList(w, r, t)
		return
	}

	txs, err := s.svc.List(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to list transactions", err, log.OpList)
		return
	}
	NewJSONResponse().Body(nonNil(txs)).Write(w)
}

func (s *Server) handleListByType(t core.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeList(w, r, t)
	}
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, t core.TransactionType) {
	txs, err := s.svc.ListByType(r.Context(), t)
	if err != nil {
		s.serverError(w, r, "Failed to list transactions by type", err, log.OpList)
		return
	}
	NewJSONResponse().Body(nonNil(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	tx, found, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.serverError(w, r, "Failed to get transaction", err, log.OpRead)
		return
	}
	if !found {
		NotFoundError("transaction not found").Write(w)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.readTransaction(w, r)
	if !ok {
		return
	}
	// Ids are store-assigned.
	tx.ID = 0

	created, err := s.svc.Create(r.Context(), tx)
	if err != nil {
		s.mutationError(w, r, "Failed to create transaction", err, log.OpCreate)
		return
	}
	s.invalidateSummaries()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", apiBase+"/"+strconv.FormatInt(created.ID, 10)).
		Body(created).
		Write(w)
}

// handleUpdateTransaction overwrites every field of the record. A body id
// of zero means "the id in the path".
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	tx, ok := s.readTransaction(w, r)
	if !ok {
		return
	}
	if tx.ID != 0 && tx.ID != id {
		BadRequestError("transaction id in body does not match path").Write(w)
		return
	}

	found, err := s.svc.Update(r.Context(), id, tx)
	if err != nil {
		s.mutationError(w, r, "Failed to update transaction", err, log.OpUpdate)
		return
	}
	if !found {
		NotFoundError("transaction not found").Write(w)
		return
	}
	s.invalidateSummaries()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	deleted, err := s.svc.Delete(r.Context(), id)
	if err != nil {
		s.serverError(w, r, "Failed to delete transaction", err, log.OpDelete)
		return
	}
	if !deleted {
		NotFoundError("transaction not found").Write(w)
		return
	}
	s.invalidateSummaries()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleSummary serves chart data for ?window, cached per window and
// calendar day until the next mutation.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	window, err := core.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	now := s.now().In(s.loc)
	key := string(window) + "|" + now.Format("2006-01-02")

	if s.summaryCache != nil {
		if cached, ok := s.summaryCache.Get(key); ok {
			NewJSONResponse().Header("X-Cache", "HIT").Body(cached).Write(w)
			return
		}
	}

	var gen uint64
	if s.summaryCache != nil {
		gen = s.summaryCache.Generation()
	}
	summary, err := s.svc.Summary(r.Context(), window, now, s.loc)
	if err != nil {
		s.serverError(w, r, "Failed to compute summary", err, log.OpSummary)
		return
	}
	if s.summaryCache != nil {
		s.summaryCache.SetIfUnchanged(gen, key, summary)
	}
	NewJSONResponse().Header("X-Cache", "MISS").Body(summary).Write(w)
}

// readTransaction decodes the body, writing the 4xx itself on failure.
func (s *Server) readTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, bool) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
		case errors.Is(err, core.ErrInvalidType):
			UnprocessableEntityError(core.ErrInvalidType.Error()).Write(w)
		default:
			BadRequestError(err.Error()).Write(w)
		}
		return core.Transaction{}, false
	}

	tx, err := req.toTransaction(s.loc)
	if errors.Is(err, core.ErrInvalidAmount) {
		UnprocessableEntityError(err.Error()).Write(w)
		return core.Transaction{}, false
	}
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return core.Transaction{}, false
	}
	return tx, true
}

// mutationError maps validation failures to 422 and anything else to 500.
func (s *Server) mutationError(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	if services.IsValidationError(err) {
		var ve *services.ValidationError
		errors.As(err, &ve)
		UnprocessableEntityError(ve.Err.Error()).Write(w)
		return
	}
	s.serverError(w, r, msg, err, op)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	log.FromContext(r.Context()).LogError(r.Context(), msg, err, op, log.NewFields())
	InternalServerError().Write(w)
}

func nonNil(txs []core.Transaction) []core.Transaction {
	if txs == nil {
		return []core.Transaction{}
	}
	return txs
}
