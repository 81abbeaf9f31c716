package service

import (
	"errors"
	"fmt"

	"github.com/avc/toyshop/internal/domain"
)

// passthrough ошибки, которые сервисы возвращают без обертки
var passthrough = []error{
	domain.ErrValidation,
	domain.ErrInsufficient,
	domain.ErrInvalidState,
	domain.ErrAlreadyResolved,
	domain.ErrSettlementFailed,
	domain.ErrDependency,
	domain.ErrUnsupportedPay,
	domain.ErrUserExists,
	domain.ErrUserNotFound,
	domain.ErrInvalidCredentials,
	domain.ErrOrderNotFound,
	domain.ErrReceiptNotFound,
	domain.ErrProductNotFound,
	domain.ErrObjectNotFound,
	domain.ErrDuplicateEntry,
}

// wrap добавляет префикс сервиса ко внутренним ошибкам, не трогая ошибки таксономии
func wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	for _, target := range passthrough {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
