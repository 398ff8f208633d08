package errs

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid")
	ErrConflict      = errors.New("conflict")
	ErrTooMany       = errors.New("too many requests")
	ErrInternal      = errors.New("internal")
	ErrIngestion     = errors.New("ingestion failed")
	ErrGeneration    = errors.New("generation failed")
	ErrAIUnavailable = errors.New("ai not configured")
	ErrNoDocuments   = errors.New("no documents uploaded")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
