package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementService определяет расчеты, доступные через HTTP
type SettlementService interface {
	CheckoutTocoin(ctx context.Context, userID uuid.UUID, cart []domain.CartItem, delivery *domain.Location) (*domain.SettlementResult, error)
	CheckoutCard(ctx context.Context, userID uuid.UUID, cart []domain.CartItem, delivery *domain.Location, proof []byte, filename string) (*domain.SettlementResult, error)
	ConfirmReceipt(ctx context.Context, receiptID uuid.UUID, note string) (*domain.SettlementResult, error)
	RejectReceipt(ctx context.Context, receiptID uuid.UUID, reason string) (*domain.SettlementResult, error)
	AdjustBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.SettlementResult, error)
}

type CheckoutHandler struct {
	settlements    SettlementService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewCheckoutHandler(settlements SettlementService, maxUploadBytes int64, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		settlements:    settlements,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type checkoutRequest struct {
	Items    []domain.CartItem `json:"items"`
	Delivery *domain.Location  `json:"delivery,omitempty"`
}

// settlementResponse итог расчета; warnings перечисляет сбои побочных шагов
type settlementResponse struct {
	Order    *domain.Order       `json:"order,omitempty"`
	Receipt  *domain.Receipt     `json:"receipt,omitempty"`
	Entry    *domain.LedgerEntry `json:"entry,omitempty"`
	Balance  *decimal.Decimal    `json:"balance,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

func newSettlementResponse(result *domain.SettlementResult, withBalance bool) settlementResponse {
	resp := settlementResponse{
		Order:    result.Order,
		Receipt:  result.Receipt,
		Entry:    result.Entry,
		Warnings: warningMessages(result.Warnings),
	}
	if withBalance {
		balance := result.Balance
		resp.Balance = &balance
	}
	return resp
}

// CheckoutTocoin godoc
// @Summary Pay for a cart with Tocoin
// @Tags checkout
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body checkoutRequest true "Cart"
// @Success 200 {object} settlementResponse
// @Failure 400,402,422 {object} errorResponse
// @Router /api/user/checkout/tocoin [post]
func (h *CheckoutHandler) CheckoutTocoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "malformed JSON body")
		return
	}

	result, err := h.settlements.CheckoutTocoin(r.Context(), userID, req.Items, req.Delivery)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, newSettlementResponse(result, true))
}

// CheckoutCard godoc
// @Summary Pay for a cart by card and upload the receipt
// @Tags checkout
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param cart formData string true "JSON array of {product_id, quantity}"
// @Param receipt formData file true "Payment proof"
// @Param lat formData number false "Delivery latitude"
// @Param lng formData number false "Delivery longitude"
// @Success 202 {object} settlementResponse
// @Failure 400,413,503 {object} errorResponse
// @Router /api/user/checkout/card [post]
func (h *CheckoutHandler) CheckoutCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if !parseUpload(w, r, h.maxUploadBytes, h.logger) {
		return
	}

	var cart []domain.CartItem
	if err := json.Unmarshal([]byte(r.FormValue("cart")), &cart); err != nil {
		writeBadRequest(w, h.logger, "cart must be a JSON array")
		return
	}

	delivery, err := parseLocation(r.FormValue("lat"), r.FormValue("lng"))
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}

	proof, filename, err := readFormFile(r, "receipt")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}

	result, err := h.settlements.CheckoutCard(r.Context(), userID, cart, delivery, proof, filename)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusAccepted, newSettlementResponse(result, false))
}

// parseLocation разбирает необязательную точку доставки из полей формы
func parseLocation(lat, lng string) (*domain.Location, error) {
	if lat == "" && lng == "" {
		return nil, nil
	}

	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, errors.New("lat must be a number")
	}
	lngV, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, errors.New("lng must be a number")
	}
	return &domain.Location{Lat: latV, Lng: lngV}, nil
}

// readFormFile читает файл из multipart формы; отсутствие файла не ошибка
// parseUpload разбирает multipart-форму не больше limit байт.
// При ошибке ответ уже записан: 413 для слишком большой формы, иначе 400.
func parseUpload(w http.ResponseWriter, r *http.Request, limit int64, logger *zap.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, logger, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload is too large"})
			return false
		}
		writeBadRequest(w, logger, "malformed multipart form")
		return false
	}
	return true
}

func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", errors.New("malformed " + field + " file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", errors.New("failed to read " + field + " file")
	}
	return data, header.Filename, nil
}
