// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — релиз, проба или результат не найдены.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation — нарушено предусловие операции.
	ErrValidation = errors.New("validation failed")
	// ErrConflict — конкурентный переход проиграл гонку (version mismatch).
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrUpstream — реестр проб или результатов недоступен.
	ErrUpstream = errors.New("upstream registry unavailable")
)
