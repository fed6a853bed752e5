package analyses

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNotCancellable = errors.New("not cancellable")
	ErrTerminal       = errors.New("analysis already terminal")
	ErrValidation     = errors.New("validation failed")
)

const (
	ErrorCodeValidation      = "VALIDATION_ERROR"
	ErrorCodeProviderTimeout = "PROVIDER_TIMEOUT"
	ErrorCodeProvider        = "PROVIDER_ERROR"
	ErrorCodeStorage         = "STORAGE_ERROR"
	ErrorCodeInternal        = "INTERNAL_ERROR"
)
