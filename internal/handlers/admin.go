package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/avc/toyshop/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceiptQueue определяет очередь квитанций на проверку
type ReceiptQueue interface {
	ListByStatus(ctx context.Context, status domain.ReceiptStatus) ([]*domain.Receipt, error)
}

// Reconciler запускает сверку балансов с журналом
type Reconciler interface {
	Run(ctx context.Context, repair bool) (*domain.ReconcileReport, error)
}

type AdminHandler struct {
	settlements SettlementService
	receipts    ReceiptQueue
	reconciler  Reconciler
	logger      *zap.Logger
}

func NewAdminHandler(settlements SettlementService, receipts ReceiptQueue, reconciler Reconciler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		settlements: settlements,
		receipts:    receipts,
		reconciler:  reconciler,
		logger:      logger,
	}
}

// ListReceipts godoc
// @Summary Receipts by status, oldest first
// @Tags admin
// @Produce json
// @Security Bearer
// @Param status query string false "waiting, confirmed or rejected" default(waiting)
// @Success 200 {array} domain.Receipt
// @Success 204
// @Router /api/admin/receipts [get]
func (h *AdminHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	status := domain.ReceiptStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.ReceiptStatusWaiting
	}

	receipts, err := h.receipts.ListByStatus(r.Context(), status)
	writeList(w, r, h.logger, receipts, err)
}

type confirmRequest struct {
	Note string `json:"note"`
}

// ConfirmReceipt godoc
// @Summary Confirm a receipt and credit Tocoin
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Receipt ID"
// @Param request body confirmRequest false "Admin note"
// @Success 200 {object} settlementResponse
// @Failure 404,409 {object} errorResponse
// @Router /api/admin/receipts/{id}/confirm [post]
func (h *AdminHandler) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	receiptID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, h.logger, "malformed JSON body")
			return
		}
	}

	result, err := h.settlements.ConfirmReceipt(r.Context(), receiptID, req.Note)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, newSettlementResponse(result, true))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectReceipt godoc
// @Summary Reject a receipt with a reason
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Receipt ID"
// @Param request body rejectRequest true "Reason"
// @Success 200 {object} settlementResponse
// @Failure 400,404,409 {object} errorResponse
// @Router /api/admin/receipts/{id}/reject [post]
func (h *AdminHandler) RejectReceipt(w http.ResponseWriter, r *http.Request) {
	receiptID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "malformed JSON body")
		return
	}

	result, err := h.settlements.RejectReceipt(r.Context(), receiptID, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, newSettlementResponse(result, false))
}

type adjustRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// AdjustBalance godoc
// @Summary Credit (positive) or debit (negative) a user's balance
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "User ID"
// @Param request body adjustRequest true "Signed amount"
// @Success 200 {object} settlementResponse
// @Failure 400,402,404 {object} errorResponse
// @Router /api/admin/users/{id}/balance [post]
func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "malformed JSON body")
		return
	}

	result, err := h.settlements.AdjustBalance(r.Context(), userID, req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, newSettlementResponse(result, true))
}

// Reconcile godoc
// @Summary Re-derive balances from the ledger
// @Tags admin
// @Produce json
// @Security Bearer
// @Param repair query bool false "Repair drift and recover confirmed receipts" default(true)
// @Success 200 {object} domain.ReconcileReport
// @Router /api/admin/reconcile [post]
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	repair := true
	if raw := r.URL.Query().Get("repair"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, h.logger, "repair must be true or false")
			return
		}
		repair = v
	}

	report, err := h.reconciler.Run(r.Context(), repair)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, report)
}

func (h *AdminHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return pathID(w, r, h.logger)
}

func pathID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, logger, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
