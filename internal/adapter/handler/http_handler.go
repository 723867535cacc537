package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/strafford/commissary/internal/core/domain"
	"github.com/strafford/commissary/internal/core/service"
)

type HTTPHandler struct {
	ledger *service.LedgerService
}

func NewHTTPHandler(ledger *service.LedgerService) *HTTPHandler {
	return &HTTPHandler{ledger: ledger}
}

type TransactionItemRequest struct {
	UPC      string `json:"upc"`
	Quantity int    `json:"quantity"`
}

type TransactionHTTPRequest struct {
	Kind   string                   `json:"kind"`
	Amount string                   `json:"amount"`
	Items  []TransactionItemRequest `json:"items,omitempty"`
}

type TransactionHTTPResponse struct {
	AccountID  int64  `json:"account_id"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	NewBalance string `json:"new_balance"`
}

type ErrorHTTPResponse struct {
	Error string `json:"error"`
}

// PostTransaction handles POST /api/accounts/{id}/transactions.
// Money crosses this boundary as decimal strings; everything past the
// decode is integer minor units.
func (h *HTTPHandler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var body TransactionHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := domain.TransactionRequest{
		RequestID: r.Header.Get("Request-Id"),
		Kind:      domain.TransactionKind(body.Kind),
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Kind != domain.KindCredit && req.Kind != domain.KindWithdrawal {
		writeError(w, http.StatusBadRequest, "kind must be credit or withdrawal")
		return
	}

	if body.Amount != "" {
		dec, err := decimal.NewFromString(body.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
		req.AmountEstimate, err = domain.MoneyFromDecimal(dec)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	for _, item := range body.Items {
		req.Items = append(req.Items, domain.RequestedItem{
			UPC:      item.UPC,
			Quantity: item.Quantity,
		})
	}

	result, err := h.ledger.Post(r.Context(), accountID, req)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, TransactionHTTPResponse{
		AccountID:  result.AccountID,
		Kind:       string(result.Kind),
		Amount:     result.Amount.String(),
		NewBalance: result.NewBalance.String(),
	})
}

// GetBalance handles GET /api/accounts/{id}/balance.
func (h *HTTPHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	balance, err := h.ledger.Balance(r.Context(), accountID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    balance.String(),
	})
}

type LedgerEntryResponse struct {
	ID         int64  `json:"id"`
	AccountID  int64  `json:"account_id"`
	ResidentID int64  `json:"resident_id"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	CreatedAt  string `json:"created_at"`
}

func entryResponse(e domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:         e.ID,
		AccountID:  e.AccountID,
		ResidentID: e.ResidentID,
		Kind:       string(e.Kind),
		Amount:     e.Amount.String(),
		CreatedAt:  e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ListTransactions handles GET /api/accounts/{id}/transactions.
func (h *HTTPHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := h.ledger.Entries(r.Context(), accountID, limit)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	resp := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, entryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

type LineItemResponse struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// GetTransaction handles GET /api/transactions/{id}, returning the entry
// with its line items.
func (h *HTTPHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	entry, lines, err := h.ledger.Entry(r.Context(), entryID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	lineResp := make([]LineItemResponse, 0, len(lines))
	for _, l := range lines {
		lineResp = append(lineResp, LineItemResponse{ItemID: l.ItemID, Quantity: l.Quantity})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": entryResponse(*entry),
		"items":       lineResp,
	})
}

type ItemHTTPResponse struct {
	ID             int64  `json:"id"`
	UPC            string `json:"upc"`
	Name           string `json:"name"`
	UnitPrice      string `json:"unit_price"`
	QuantityOnHand int    `json:"quantity_on_hand"`
}

func itemResponse(item *domain.Item) ItemHTTPResponse {
	return ItemHTTPResponse{
		ID:             item.ID,
		UPC:            item.UPC,
		Name:           item.Name,
		UnitPrice:      item.UnitPrice.String(),
		QuantityOnHand: item.QuantityOnHand,
	}
}

// GetItem handles GET /api/items/{upc}.
func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.ledger.Item(r.Context(), r.PathValue("upc"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse(item))
}

type RestockHTTPRequest struct {
	Quantity int `json:"quantity"`
}

// Restock handles POST /api/items/{upc}/restock.
func (h *HTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var body RestockHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.ledger.Restock(r.Context(), r.PathValue("upc"), body.Quantity)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse(item))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeLedgerError(w http.ResponseWriter, err error) {
	var (
		notFound     *domain.ItemNotFoundError
		noStock      *domain.InsufficientStockError
		noFunds      *domain.InsufficientFundsError
		persistError *domain.PersistenceError
	)

	switch {
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrAccountDeleted):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMissingItems), errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnexpectedItems):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &noStock):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &noFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.As(err, &persistError):
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorHTTPResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
