package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avc/toyshop/internal/domain"
	"go.uber.org/zap"
)

// actionFailed сообщение для ошибок, детали которых не показываются клиенту
const actionFailed = "action failed"

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON пишет v как JSON с указанным статусом
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError сопоставляет ошибку одному статусу и одному сообщению.
// Неизвестные ошибки логируются и отдаются как "action failed".
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", domain.RequestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, logger, status, errorResponse{Error: message})
}

func writeBadRequest(w http.ResponseWriter, logger *zap.Logger, message string) {
	writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: message})
}

func classify(err error) (int, string) {
	var dependency *domain.DependencyUnavailableError

	switch {
	case errors.Is(err, domain.ErrValidation):
		var validation *domain.ValidationError
		if errors.As(err, &validation) {
			return http.StatusBadRequest, validation.Error()
		}
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrUnsupportedPay):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrInsufficient):
		var insufficient *domain.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			return http.StatusPaymentRequired, insufficient.Error()
		}
		return http.StatusPaymentRequired, "insufficient balance"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid login or password"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "login is already taken"
	case errors.Is(err, domain.ErrAlreadyResolved):
		var resolved *domain.AlreadyResolvedError
		if errors.As(err, &resolved) {
			return http.StatusConflict, resolved.Error()
		}
		return http.StatusConflict, "receipt already resolved"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "action is not allowed in the current state"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, domain.ErrReceiptNotFound):
		return http.StatusNotFound, "receipt not found"
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, domain.ErrObjectNotFound):
		return http.StatusNotFound, "file not found"
	case errors.As(err, &dependency):
		return http.StatusServiceUnavailable, dependency.Dependency + " unavailable, try again later"
	case errors.Is(err, domain.ErrSettlementFailed):
		return http.StatusInternalServerError, "settlement could not be completed, try again later"
	default:
		return http.StatusInternalServerError, actionFailed
	}
}

// warningMessages переводит предупреждения расчета в сообщения для клиента
func warningMessages(warnings []error) []string {
	if len(warnings) == 0 {
		return nil
	}

	messages := make([]string, 0, len(warnings))
	for _, w := range warnings {
		var dependency *domain.DependencyUnavailableError
		switch {
		case errors.As(w, &dependency):
			messages = append(messages, dependency.Dependency+" unavailable")
		case errors.Is(w, domain.ErrInvalidState), errors.Is(w, domain.ErrOrderNotFound):
			messages = append(messages, "order status could not be updated")
		default:
			messages = append(messages, "follow-up step failed and will be retried")
		}
	}
	return messages
}
