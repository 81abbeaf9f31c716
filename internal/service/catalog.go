package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// allowedImageExt расширения файлов квитанций и изображений
var allowedImageExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".pdf":  true,
}

// objectExt возвращает нормализованное расширение файла или ".bin"
func objectExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if allowedImageExt[ext] {
		return ext
	}
	return ".bin"
}

// NewProduct параметры нового товара
type NewProduct struct {
	Name          string
	PriceAZN      decimal.Decimal
	PriceTocoin   *decimal.Decimal
	Stock         int
	Image         []byte
	ImageFilename string
}

// CatalogService каталог товаров
type CatalogService struct {
	products domain.ProductRepository
	objects  domain.ObjectStore
}

// NewCatalogService создает новый CatalogService
func NewCatalogService(products domain.ProductRepository, objects domain.ObjectStore) *CatalogService {
	return &CatalogService{products: products, objects: objects}
}

// AddProduct проверяет и сохраняет товар, изображение кладет в хранилище объектов
func (s *CatalogService) AddProduct(ctx context.Context, p NewProduct) (*domain.Product, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}
	if !p.PriceAZN.IsPositive() {
		return nil, domain.NewValidationError("price_azn", "must be positive")
	}
	if p.PriceTocoin != nil && p.PriceTocoin.IsNegative() {
		return nil, domain.NewValidationError("price_tocoin", "must not be negative")
	}
	if p.Stock < 0 {
		return nil, domain.NewValidationError("stock", "must not be negative")
	}

	product := &domain.Product{
		ID:       uuid.New(),
		Name:     name,
		PriceAZN: p.PriceAZN.Round(domain.MoneyScale),
		Stock:    p.Stock,
	}
	if p.PriceTocoin != nil {
		price := p.PriceTocoin.Round(domain.MoneyScale)
		product.PriceTocoin = &price
	}

	if len(p.Image) > 0 {
		path := fmt.Sprintf("products/%s%s", product.ID, objectExt(p.ImageFilename))
		ref, err := s.objects.Put(ctx, path, p.Image)
		if err != nil {
			return nil, &domain.DependencyUnavailableError{Dependency: "object store", Err: err}
		}
		product.ImageRef = &ref
	}

	created, err := s.products.CreateProduct(ctx, product)
	if err != nil {
		return nil, wrap(err, "catalog service: failed to create product %q", name)
	}
	return created, nil
}

// DeleteProduct убирает товар из каталога. Изображение остается в хранилище,
// на него могут ссылаться уже оформленные заказы.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return wrap(err, "catalog service: failed to delete product %s", id)
	}
	return nil
}

// ListProducts возвращает каталог
func (s *CatalogService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, wrap(err, "catalog service: failed to list products")
	}
	return products, nil
}
