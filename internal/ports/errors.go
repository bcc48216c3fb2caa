package ports

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAcquisition        = errors.New("acquisition failed")
	ErrExtraction         = errors.New("audio extraction failed")
	ErrAnnotationService  = errors.New("annotation service failed")
	ErrRender             = errors.New("render failed")
	ErrInputValidation    = errors.New("invalid input")
	ErrAnnotationTimeout  = fmt.Errorf("%w: timed out", ErrAnnotationService)
	ErrAnnotationRejected = fmt.Errorf("%w: rejected", ErrAnnotationService)
)

// Wrap tags err with marker so callers can classify it with errors.Is while
// keeping the operation context in the message.
func Wrap(marker error, op, message string, err error) error {
	parts := make([]string, 0, 2)
	if op = strings.TrimSpace(op); op != "" {
		parts = append(parts, op)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "failure"
	}
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the failure class of err for status reporting.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInputValidation):
		return "invalid_input"
	case errors.Is(err, ErrAcquisition):
		return "acquisition"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrAnnotationTimeout):
		return "annotation_timeout"
	case errors.Is(err, ErrAnnotationRejected):
		return "annotation_rejected"
	case errors.Is(err, ErrAnnotationService):
		return "annotation"
	case errors.Is(err, ErrRender):
		return "render"
	default:
		return "internal"
	}
}
