package accounts

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler serves account endpoints.
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

// MountRoutes registers customer-facing account routes. The parent router
// enforces authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounts", h.handleOpen)
	r.Get("/accounts", h.handleListMine)
	r.Get("/accounts/{accountID}", h.handleGet)
	r.Get("/accounts/number/{number}", h.handleGetByNumber)
	r.Get("/accounts/{accountID}/balance", h.handleBalance)
	r.Post("/accounts/{accountID}/close", h.handleClose)
	r.Put("/accounts/{accountID}/type", h.handleUpdateType)
}

// MountAdminRoutes registers operator routes. The parent router enforces the
// operator key.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/accounts", h.handleListAll)
	r.Get("/accounts/{accountID}", h.handleAdminGet)
	r.Post("/accounts/{accountID}/suspend", h.handleSuspend)
	r.Post("/accounts/{accountID}/activate", h.handleActivate)
	r.Delete("/accounts/{accountID}", h.handleDelete)
}

type accountResponse struct {
	ID               int64     `json:"id"`
	Number           string    `json:"number"`
	Type             string    `json:"type"`
	Status           string    `json:"status"`
	Balance          string    `json:"balance"`
	BalanceFormatted string    `json:"balance_formatted"`
	CreatedAt        time.Time `json:"created_at"`
}

func toAccountResponse(a *Account) accountResponse {
	return accountResponse{
		ID:               a.ID,
		Number:           a.Number,
		Type:             string(a.Type),
		Status:           string(a.Status),
		Balance:          a.Balance.StringFixed(2),
		BalanceFormatted: shared.FormatAmount(a.Balance),
		CreatedAt:        a.CreatedAt,
	}
}

func toAccountResponses(accounts []Account) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, toAccountResponse(&accounts[i]))
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

type openAccountRequest struct {
	Type           string `json:"type" validate:"required"`
	InitialDeposit string `json:"initial_deposit"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "type is required")
		return
	}

	in := OpenInput{
		CustomerID: shared.CustomerIDFromContext(r.Context()),
		Type:       AccountType(req.Type),
	}
	if req.InitialDeposit != "" {
		amount, err := shared.ParseAmount(req.InitialDeposit)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.InitialDeposit = amount
	}

	opened, err := h.service.Open(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(opened))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	customerID := shared.CustomerIDFromContext(r.Context())
	accounts, err := h.service.ListMine(r.Context(), customerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": toAccountResponses(accounts)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.GetOwned(r.Context(), shared.CustomerIDFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	account, err := h.service.GetOwnedByNumber(r.Context(), shared.CustomerIDFromContext(r.Context()), number)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.GetOwned(r.Context(), shared.CustomerIDFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"number":            account.Number,
		"balance":           account.Balance.StringFixed(2),
		"balance_formatted": shared.FormatAmount(account.Balance),
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	closed, err := h.service.Close(r.Context(), shared.CustomerIDFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(closed))
}

type updateTypeRequest struct {
	Type string `json:"type" validate:"required"`
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateTypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "type is required")
		return
	}

	updated, err := h.service.UpdateType(r.Context(), shared.CustomerIDFromContext(r.Context()), id, AccountType(req.Type))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(updated))
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	accounts, pagination, err := h.service.ListAll(r.Context(), page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"accounts": toAccountResponses(accounts),
		"pagination": map[string]int{
			"page":        pagination.Page,
			"per_page":    pagination.PerPage,
			"total":       pagination.Total,
			"total_pages": pagination.TotalPages,
		},
	})
}

func (h *Handler) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Suspend(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Activate(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
