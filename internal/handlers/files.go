package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/avc/toyshop/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ObjectReader читает объекты из хранилища
type ObjectReader interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// FileHandler отдает квитанции и изображения товаров
type FileHandler struct {
	objects ObjectReader
	logger  *zap.Logger
}

func NewFileHandler(objects ObjectReader, logger *zap.Logger) *FileHandler {
	return &FileHandler{objects: objects, logger: logger}
}

// Get godoc
// @Summary Download a stored file
// @Description Receipts are visible to their owner and admins; product images to everyone signed in.
// @Tags files
// @Security Bearer
// @Param ref path string true "Object reference"
// @Success 200 {file} binary
// @Failure 404 {object} errorResponse
// @Router /api/files/{ref} [get]
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ref := strings.Trim(chi.URLParam(r, "*"), "/")
	if ref == "" || strings.Contains(ref, "..") {
		writeError(w, r, h.logger, domain.ErrObjectNotFound)
		return
	}

	// Чужие квитанции отдаются как отсутствующие
	if !canRead(ref, userID.String(), IsAdmin(r.Context())) {
		writeError(w, r, h.logger, domain.ErrObjectNotFound)
		return
	}

	data, err := h.objects.Get(r.Context(), ref)
	if err != nil {
		if !errors.Is(err, domain.ErrObjectNotFound) {
			err = &domain.DependencyUnavailableError{Dependency: "object store", Err: err}
		}
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("failed to write file", zap.String("ref", ref), zap.Error(err))
	}
}

func canRead(ref, userID string, admin bool) bool {
	switch {
	case admin:
		return true
	case strings.HasPrefix(ref, "products/"), strings.HasPrefix(ref, "avatars/"):
		return true
	case strings.HasPrefix(ref, "receipts/"+userID+"/"):
		return true
	default:
		return false
	}
}
