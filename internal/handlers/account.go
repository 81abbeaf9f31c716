package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountService определяет чтение баланса и истории пользователя
type AccountService interface {
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	History(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error)
	GetOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	Receipts(ctx context.Context, userID uuid.UUID) ([]*domain.Receipt, error)
	Notifications(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error)
	UploadAvatar(ctx context.Context, userID uuid.UUID, image []byte, filename string) (*domain.User, error)
}

// defaultNotificationLimit число уведомлений в ответе по умолчанию
const defaultNotificationLimit = 20

type AccountHandler struct {
	account        AccountService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewAccountHandler(account AccountService, maxUploadBytes int64, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		account:        account,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// GetBalance godoc
// @Summary Tocoin balance
// @Tags user
// @Produce json
// @Security Bearer
// @Success 200 {object} balanceResponse
// @Router /api/user/balance [get]
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	balance, err := h.account.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, balanceResponse{Balance: balance})
}

// GetLedger godoc
// @Summary Ledger entries, newest first
// @Tags user
// @Produce json
// @Security Bearer
// @Success 200 {array} domain.LedgerEntry
// @Success 204
// @Router /api/user/ledger [get]
func (h *AccountHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := h.account.History(r.Context(), userID)
	writeList(w, r, h.logger, entries, err)
}

// GetOrders godoc
// @Summary Own orders, newest first
// @Tags user
// @Produce json
// @Security Bearer
// @Success 200 {array} domain.Order
// @Success 204
// @Router /api/user/orders [get]
func (h *AccountHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := h.account.GetOrders(r.Context(), userID)
	writeList(w, r, h.logger, orders, err)
}

// GetReceipts godoc
// @Summary Own receipts with admin notes
// @Tags user
// @Produce json
// @Security Bearer
// @Success 200 {array} domain.Receipt
// @Success 204
// @Router /api/user/receipts [get]
func (h *AccountHandler) GetReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	receipts, err := h.account.Receipts(r.Context(), userID)
	writeList(w, r, h.logger, receipts, err)
}

// GetNotifications godoc
// @Summary Recent notifications
// @Tags user
// @Produce json
// @Security Bearer
// @Param limit query int false "Max items"
// @Success 200 {array} domain.Notification
// @Success 204
// @Router /api/user/notifications [get]
func (h *AccountHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, h.logger, "limit must be a positive integer")
			return
		}
		limit = n
	}

	notifications, err := h.account.Notifications(r.Context(), userID, limit)
	writeList(w, r, h.logger, notifications, err)
}

// UploadAvatar godoc
// @Summary Upload a profile picture
// @Tags user
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param avatar formData file true "PNG, JPEG or WebP image"
// @Success 200 {object} domain.User
// @Failure 400,413,503 {object} errorResponse
// @Router /api/user/avatar [post]
func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if !parseUpload(w, r, h.maxUploadBytes, h.logger) {
		return
	}

	image, filename, err := readFormFile(r, "avatar")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}

	user, err := h.account.UploadAvatar(r.Context(), userID, image, filename)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, user)
}

// writeList отдает список или 204, если он пуст
func writeList[T any](w http.ResponseWriter, r *http.Request, logger *zap.Logger, items []T, err error) {
	if err != nil {
		writeError(w, r, logger, err)
		return
	}

	if len(items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, logger, http.StatusOK, items)
}
