package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DRSN-tech/visual-search/pkg/e"
)

// ErrorResponse тело ответа с ошибкой. Details заполняется только вне production.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func NewErrorResponse(message, details string) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   message,
		Details: details,
	}
}

// ToHTTPResponse выбирает код ответа по категории ошибки.
// Порядок важен: ошибка может принадлежать нескольким категориям.
func ToHTTPResponse(err error) (int, string) {
	code, fallback := httpStatus(err)

	if code == http.StatusInternalServerError {
		return code, fallback
	}

	if msg := e.Message(err); msg != "" {
		return code, msg
	}

	return code, fallback
}

func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrRequestTooLarge), errors.Is(err, e.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrImageTooLarge.Error()
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound, e.ErrNotFound.Error()
	case errors.Is(err, e.ErrImageProcessing) && errors.Is(err, e.ErrUpstream):
		return http.StatusBadGateway, e.ErrImageFetchFailed.Error()
	case errors.Is(err, e.ErrValidation):
		return http.StatusBadRequest, e.ErrValidation.Error()
	case errors.Is(err, e.ErrImageProcessing):
		return http.StatusBadRequest, e.ErrImageProcessing.Error()
	case errors.Is(err, e.ErrAuthentication):
		return http.StatusBadGateway, e.ErrAuthentication.Error()
	case errors.Is(err, e.ErrEmbedding):
		return http.StatusBadGateway, e.ErrEmbedding.Error()
	case errors.Is(err, e.ErrIndexOperation):
		return http.StatusServiceUnavailable, e.ErrIndexOperation.Error()
	case errors.Is(err, e.ErrUpstream):
		return http.StatusBadGateway, e.ErrUpstream.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

// WriteError пишет ошибку в формате {success:false, error, details?}.
func WriteError(w http.ResponseWriter, err error, withDetails bool) int {
	code, msg := ToHTTPResponse(err)

	var details string
	if withDetails {
		details = err.Error()
	}

	WriteSuccess(w, code, NewErrorResponse(msg, details))
	return code
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса не длиннее maxBytes. Пустое тело допустимо при allowEmpty.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return e.ErrRequestTooLarge
		case errors.Is(err, io.EOF) && allowEmpty:
			return nil
		default:
			return e.Wrap(err.Error(), e.ErrInvalidJSON)
		}
	}

	return nil
}
