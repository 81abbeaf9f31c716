package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/avc/toyshop/internal/domain"
	"github.com/avc/toyshop/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService определяет работу с каталогом товаров
type CatalogService interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	AddProduct(ctx context.Context, p service.NewProduct) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type ProductHandler struct {
	catalog        CatalogService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewProductHandler(catalog CatalogService, maxUploadBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog:        catalog,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// List godoc
// @Summary Product catalog
// @Tags products
// @Produce json
// @Security Bearer
// @Success 200 {array} domain.Product
// @Success 204
// @Router /api/products [get]
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	writeList(w, r, h.logger, products, err)
}

// Add godoc
// @Summary Add a product (admin)
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param name formData string true "Name"
// @Param price_azn formData string true "Price in AZN"
// @Param price_tocoin formData string false "Price in Tocoin"
// @Param stock formData int true "Stock"
// @Param image formData file false "Image"
// @Success 201 {object} domain.Product
// @Failure 400,413 {object} errorResponse
// @Router /api/admin/products [post]
func (h *ProductHandler) Add(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r, h.maxUploadBytes, h.logger) {
		return
	}

	p, err := parseNewProduct(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}

	p.Image, p.ImageFilename, err = readFormFile(r, "image")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}

	product, err := h.catalog.AddProduct(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, product)
}

// Delete godoc
// @Summary Remove a product from the catalog (admin)
// @Tags admin
// @Security Bearer
// @Param id path string true "Product ID"
// @Success 204
// @Failure 400,404 {object} errorResponse
// @Router /api/admin/products/{id} [delete]
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), productID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("product deleted", zap.String("product_id", productID.String()))
	w.WriteHeader(http.StatusNoContent)
}

func parseNewProduct(r *http.Request) (service.NewProduct, error) {
	p := service.NewProduct{Name: r.FormValue("name")}

	price, err := decimal.NewFromString(r.FormValue("price_azn"))
	if err != nil {
		return p, domain.NewValidationError("price_azn", "must be a number")
	}
	p.PriceAZN = price

	if raw := strings.TrimSpace(r.FormValue("price_tocoin")); raw != "" {
		tocoin, err := decimal.NewFromString(raw)
		if err != nil {
			return p, domain.NewValidationError("price_tocoin", "must be a number")
		}
		p.PriceTocoin = &tocoin
	}

	stock, err := strconv.Atoi(r.FormValue("stock"))
	if err != nil {
		return p, domain.NewValidationError("stock", "must be an integer")
	}
	p.Stock = stock

	return p, nil
}
