package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"libmgmt/internal/util"
	"libmgmt/pkg/domain"
)

const maxJSONBytes = 1 << 20

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      codeFor(status),
		RequestID: util.RequestIDFromContext(r.Context()),
	})
}

// writeAppError maps a classified error to its status. Unclassified errors
// are logged and reported with a generic message.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Code:      string(kind),
		RequestID: util.RequestIDFromContext(r.Context()),
	})
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:      http.StatusBadRequest,
	domain.KindUnauthenticated: http.StatusUnauthorized,
	domain.KindPermission:      http.StatusForbidden,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindIntegrity:       http.StatusConflict,
	domain.KindQuotaExceeded:   http.StatusPreconditionFailed,
	domain.KindStateConflict:   http.StatusUnprocessableEntity,
	domain.KindNotAvailable:    http.StatusLocked,
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(domain.KindValidation)
	case http.StatusUnauthorized:
		return string(domain.KindUnauthenticated)
	case http.StatusForbidden:
		return string(domain.KindPermission)
	case http.StatusNotFound:
		return string(domain.KindNotFound)
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	default:
		return "internal"
	}
}

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

// decode reads a JSON body into dst and validates it. A failure has already
// been written to w when decode returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " too long"
	case "email":
		return fe.Field() + " is not a valid email address"
	default:
		return fe.Field() + " is invalid"
	}
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.Errorf(domain.KindValidation, "invalid id %q", raw)
	}
	return uint(id), nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewError(domain.KindValidation, fmt.Sprintf("invalid %s", name))
	}
	return n, nil
}
