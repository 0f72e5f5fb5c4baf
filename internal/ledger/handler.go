package ledger

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// idempotencyHeader carries the client-chosen key that makes a movement
// safe to retry.
const idempotencyHeader = "Idempotency-Key"

// Handler serves money movement and history endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers customer-facing ledger routes. The parent router
// enforces authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounts/{accountID}/deposits", h.handleDeposit)
	r.Post("/accounts/{accountID}/withdrawals", h.handleWithdraw)
	r.Post("/transfers", h.handleTransfer)
	r.Get("/accounts/{accountID}/transactions", h.handleHistory)
	r.Get("/transactions/{transactionID}", h.handleGet)
}

// MountAdminRoutes registers operator routes. The parent router enforces
// the operator key.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/transactions", h.handleListAll)
}

type transactionResponse struct {
	ID               int64     `json:"id"`
	AccountID        int64     `json:"account_id"`
	Type             string    `json:"type"`
	Amount           string    `json:"amount"`
	AmountFormatted  string    `json:"amount_formatted"`
	Description      string    `json:"description"`
	BalanceAfter     string    `json:"balance_after"`
	RelatedAccountID *int64    `json:"related_account_id,omitempty"`
	TransactionDate  time.Time `json:"transaction_date"`
}

func toTransactionResponse(t *Transaction) transactionResponse {
	return transactionResponse{
		ID:               t.ID,
		AccountID:        t.AccountID,
		Type:             string(t.Type),
		Amount:           t.Amount.StringFixed(2),
		AmountFormatted:  shared.FormatAmount(t.Amount),
		Description:      t.Description,
		BalanceAfter:     t.BalanceAfter.StringFixed(2),
		RelatedAccountID: t.RelatedAccountID,
		TransactionDate:  t.TransactionDate,
	}
}

func toTransactionResponses(transactions []Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(transactions))
	for i := range transactions {
		out = append(out, toTransactionResponse(&transactions[i]))
	}
	return out
}

func accountIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "accountID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: account id must be a positive integer", shared.ErrValidation)
	}
	return id, nil
}

type movementRequest struct {
	Amount string `json:"amount" validate:"required"`
}

func (h *Handler) decodeMovement(r *http.Request) (int64, decimal.Decimal, error) {
	id, err := accountIDParam(r)
	if err != nil {
		return 0, decimal.Zero, err
	}
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return 0, decimal.Zero, fmt.Errorf("%w: malformed JSON body", shared.ErrValidation)
	}
	if err := h.validator.Struct(req); err != nil {
		return 0, decimal.Zero, fmt.Errorf("%w: amount is required", shared.ErrValidation)
	}
	amount, err := shared.ParseAmount(req.Amount)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return id, amount, nil
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id, amount, err := h.decodeMovement(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	posted, err := h.service.Deposit(r.Context(), shared.CustomerIDFromContext(r.Context()), id, amount, r.Header.Get(idempotencyHeader))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(posted))
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, amount, err := h.decodeMovement(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	posted, err := h.service.Withdraw(r.Context(), shared.CustomerIDFromContext(r.Context()), id, amount, r.Header.Get(idempotencyHeader))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(posted))
}

type transferRequest struct {
	FromAccountID int64  `json:"from_account_id" validate:"required"`
	ToAccountID   int64  `json:"to_account_id" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from_account_id, to_account_id and amount are required")
		return
	}
	amount, err := shared.ParseAmount(req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	legs, err := h.service.Transfer(r.Context(), shared.CustomerIDFromContext(r.Context()), TransferInput{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        amount,
	}, r.Header.Get(idempotencyHeader))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"transactions": toTransactionResponses(legs)})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter, err := historyFilterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	transactions, err := h.service.History(r.Context(), shared.CustomerIDFromContext(r.Context()), id, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": toTransactionResponses(transactions)})
}

func historyFilterFromQuery(r *http.Request) (HistoryFilter, error) {
	var f HistoryFilter
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			return HistoryFilter{}, fmt.Errorf("%w: from must be a YYYY-MM-DD date", shared.ErrValidation)
		}
		f.From = day
	}
	if v := q.Get("to"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			return HistoryFilter{}, fmt.Errorf("%w: to must be a YYYY-MM-DD date", shared.ErrValidation)
		}
		// Stretch the end date to its last microsecond so the inclusive
		// range keeps the whole day.
		f.To = day.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	if v := q.Get("type"); v != "" {
		f.Type = TransactionType(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return HistoryFilter{}, fmt.Errorf("%w: limit must be a positive integer", shared.ErrValidation)
		}
		f.Limit = n
	}
	return f, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "transactionID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: transaction id must be a positive integer", shared.ErrValidation))
		return
	}
	t, err := h.service.GetOwned(r.Context(), shared.CustomerIDFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(t))
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: limit must be a positive integer", shared.ErrValidation))
			return
		}
		limit = n
	}
	transactions, err := h.service.ListAll(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": toTransactionResponses(transactions)})
}
