package httpx

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Error kinds shared by the domain packages. Services return errors built with
// NotFound, Conflict or Invalid (optionally wrapped with more context) and
// handlers turn them into HTTP errors with ToFiber.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

type DomainError struct {
	Kind error
	Msg  string
}

func (e *DomainError) Error() string { return e.Msg }
func (e *DomainError) Unwrap() error { return e.Kind }

func NotFound(msg string) error { return &DomainError{Kind: ErrNotFound, Msg: msg} }
func Conflict(msg string) error { return &DomainError{Kind: ErrConflict, Msg: msg} }
func Invalid(msg string) error  { return &DomainError{Kind: ErrInvalid, Msg: msg} }

// Status maps an error to the HTTP status it should produce.
func Status(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, ErrInvalid):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// ToFiber converts a service error into a *fiber.Error. Domain errors keep
// their message; anything unexpected becomes a 500 with fallback as message.
func ToFiber(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	status := Status(err)
	if status == fiber.StatusInternalServerError {
		return fiber.NewError(status, fallback)
	}
	return fiber.NewError(status, err.Error())
}
