// internal/circulation/handler.go
package circulation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the circulation endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/loans", h.handleCreateLoan)
	r.Get("/loans/{loanID}", h.handleGetLoan)
	r.Post("/loans/{loanID}/renew", h.handleRenewLoan)
	r.Post("/loans/{loanID}/return", h.handleReturnLoan)
	r.Post("/loans/{loanID}/cancel", h.handleCancelLoan)
	r.Post("/loans/{loanID}/lost", h.handleMarkLost)
	r.Post("/loans/{loanID}/damaged", h.handleMarkDamaged)

	r.Get("/fines/{fineID}", h.handleGetFine)
	r.Post("/fines/{fineID}/payments", h.handlePayFine)
	r.Post("/fines/{fineID}/waive", h.handleWaiveFine)
	r.Post("/payments/{paymentID}/refund", h.handleRefundPayment)
	r.Post("/payments/{paymentID}/dispute", h.handleDisputePayment)

	r.Get("/members/{memberID}/loans", h.handleListMemberLoans)
	r.Get("/members/{memberID}/fines", h.handleListMemberFines)
}

func (h *Handler) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID uuid.UUID `json:"member_id"`
		BookID   uuid.UUID `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), req.MemberID, req.BookID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loanID")
	if !ok {
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleRenewLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loanID")
	if !ok {
		return
	}
	var req struct {
		ProcessedBy string `json:"processed_by"`
	}
	decodeOptional(r, &req)

	loan, err := h.service.RenewLoan(r.Context(), id, req.ProcessedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loanID")
	if !ok {
		return
	}
	var req struct {
		Condition   ReturnCondition `json:"condition"`
		ProcessedBy string          `json:"processed_by"`
	}
	decodeOptional(r, &req)
	if req.Condition == "" {
		req.Condition = ConditionGood
	}

	loan, err := h.service.ReturnLoan(r.Context(), id, req.Condition, req.ProcessedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleCancelLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loanID")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	decodeOptional(r, &req)

	loan, err := h.service.CancelLoan(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleMarkLost(w http.ResponseWriter, r *http.Request) {
	h.handleMark(w, r, h.service.MarkLost)
}

func (h *Handler) handleMarkDamaged(w http.ResponseWriter, r *http.Request) {
	h.handleMark(w, r, h.service.MarkDamaged)
}

func (h *Handler) handlePayFine(w http.ResponseWriter, r *http.Request) {
	fineID, ok := parseID(w, r, "fineID")
	if !ok {
		return
	}
	var req struct {
		MemberID uuid.UUID       `json:"member_id"`
		Amount   decimal.Decimal `json:"amount"`
		Method   PaymentMethod   `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Method == "" {
		req.Method = MethodCash
	}

	payment, err := h.service.PayFine(r.Context(), req.MemberID, fineID, req.Amount, req.Method)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payment)
}

func (h *Handler) handleWaiveFine(w http.ResponseWriter, r *http.Request) {
	fineID, ok := parseID(w, r, "fineID")
	if !ok {
		return
	}
	var req struct {
		ProcessedBy string `json:"processed_by"`
	}
	decodeOptional(r, &req)

	fine, err := h.service.WaiveFine(r.Context(), fineID, req.ProcessedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(fine)
}

func (h *Handler) handleGetFine(w http.ResponseWriter, r *http.Request) {
	fineID, ok := parseID(w, r, "fineID")
	if !ok {
		return
	}

	fine, err := h.service.GetFine(r.Context(), fineID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(fine)
}

func (h *Handler) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := parseID(w, r, "paymentID")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	decodeOptional(r, &req)

	payment, err := h.service.RefundPayment(r.Context(), paymentID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(payment)
}

func (h *Handler) handleDisputePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := parseID(w, r, "paymentID")
	if !ok {
		return
	}

	payment, err := h.service.DisputePayment(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(payment)
}

func (h *Handler) handleListMemberLoans(w http.ResponseWriter, r *http.Request) {
	memberID, ok := parseID(w, r, "memberID")
	if !ok {
		return
	}

	loans, err := h.service.ListMemberLoans(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loans)
}

func (h *Handler) handleListMemberFines(w http.ResponseWriter, r *http.Request) {
	memberID, ok := parseID(w, r, "memberID")
	if !ok {
		return
	}

	fines, err := h.service.ListMemberFines(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(fines)
}

func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request, mark func(ctx context.Context, id uuid.UUID, processedBy string) (*Loan, error)) {
	id, ok := parseID(w, r, "loanID")
	if !ok {
		return
	}
	var req struct {
		ProcessedBy string `json:"processed_by"`
	}
	decodeOptional(r, &req)

	loan, err := mark(r.Context(), id, req.ProcessedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		http.Error(w, "invalid "+param, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// decodeOptional tolerates an empty body for endpoints whose request
// fields are all optional.
func decodeOptional(r *http.Request, v interface{}) {
	_ = json.NewDecoder(r.Body).Decode(v)
}

// writeError maps each error kind to a specific status code so the API
// layer can give meaningful feedback.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, ErrLoanNotFound), errors.Is(err, ErrFineNotFound), errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrMemberNotEligible), errors.Is(err, ErrBookNotAvailable),
		errors.Is(err, ErrRenewalNotAllowed), errors.Is(err, ErrLoanNotCancellable),
		errors.Is(err, ErrInvalidAmount):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrLoanAlreadyReturned), errors.Is(err, ErrOverpayment),
		errors.Is(err, ErrMemberMismatch), errors.Is(err, ErrFineClosed),
		errors.Is(err, ErrPaymentNotRefundable), errors.Is(err, ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, ErrConflict):
		// Retryable: the whole operation rolled back.
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}
