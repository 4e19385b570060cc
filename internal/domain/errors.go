package domain

import "errors"

// Таксономия ошибок ядра. Слои выше оборачивают их через fmt.Errorf("%w"),
// HTTP-слой маппит на коды: Validation -> 400, NotFound -> 404,
// InvalidTransition / InvalidState -> 409. Никогда не глотаются.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid claim status transition")
	ErrInvalidState      = errors.New("queue entry already reviewed")
)
