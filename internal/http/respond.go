package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Clark-Hu/media-catalog/internal/auth"
	"github.com/Clark-Hu/media-catalog/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

const (
	codeValidation   = "VALIDATION_ERROR"
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeUnavailable  = "UPSTREAM_UNAVAILABLE"
	codeInternal     = "INTERNAL_ERROR"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// decodeAndValidate decodes the body into dst and runs its validate tags,
// writing the error response itself. It reports whether the handler may continue.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSONBody(w, r, dst); err != nil {
		s.respondDecodeError(w, err)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			s.respondError(w, http.StatusBadRequest, codeValidation, validationMessage(fe), fe.Field())
			return false
		}
		s.respondError(w, http.StatusBadRequest, codeValidation, "Invalid request body", "")
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

// respondCached writes an already-encoded payload and tags it with X-Cache.
func (s *Server) respondCached(w http.ResponseWriter, payload []byte, hit bool) {
	state := "MISS"
	if hit {
		state = "HIT"
	}
	w.Header().Set("X-Cache", state)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message, field string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
		Field:   field,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusBadRequest, codeValidation, "Malformed JSON payload", "")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, codeValidation, fmt.Sprintf("Invalid value for field %s", typeError.Field), typeError.Field)
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, codeValidation, "Request body too large", "")
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, codeValidation, "Request body cannot be empty", "")
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		s.respondError(w, http.StatusBadRequest, codeValidation, fmt.Sprintf("Unknown field %s", field), field)
	default:
		s.respondError(w, http.StatusBadRequest, codeValidation, "Unable to parse request body", "")
	}
}

// respondServiceError maps catalog and auth errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		s.respondError(w, http.StatusBadRequest, codeValidation, verr.Error(), verr.Field)
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.respondError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid credentials", "")
	case errors.Is(err, auth.ErrInvalidToken):
		s.respondError(w, http.StatusUnauthorized, codeUnauthorized, loginRequired, "")
	case errors.Is(err, domain.ErrNotFound):
		s.respondError(w, http.StatusNotFound, codeNotFound, "Resource not found", "")
	case errors.Is(err, domain.ErrForbidden):
		s.respondError(w, http.StatusForbidden, codeForbidden, "Not your video", "")
	case errors.Is(err, domain.ErrConflict):
		s.respondError(w, http.StatusConflict, codeConflict, "Concurrent update, retry the request", "")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, codeUnavailable, "Service temporarily unavailable", "")
	default:
		s.logger.ErrorContext(r.Context(), "unhandled service error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.respondError(w, http.StatusInternalServerError, codeInternal, "Internal server error", "")
	}
}
