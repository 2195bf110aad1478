package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"attrition/dataset"
	"attrition/ml"

	"go.uber.org/zap"
)

const msgDatasetRequired = "Please upload a dataset to proceed."

type errorBody struct {
	Error    string            `json:"error"`
	Problems []ml.FieldProblem `json:"problems,omitempty"`
}

const encodeFailureBody = `{"error":"failed to encode response"}` + "\n"

// respondJSON 统一JSON响应. Values that fail to marshal are logged and answered with 500.
func respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		zap.L().Error("failed to encode JSON response", zap.Int("status", status), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, encodeFailureBody)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// statusFor maps domain errors to HTTP status codes. Schema mismatches and scoring
// failures fall through to 500.
func statusFor(err error) int {
	var validation *ml.ValidationError
	var missing *dataset.MissingColumnError
	var columnType *dataset.ColumnTypeError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &missing), errors.As(err, &columnType):
		return http.StatusUnprocessableEntity
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with the status statusFor assigns to it.
func respondErr(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var validation *ml.ValidationError
	if errors.As(err, &validation) {
		body.Problems = validation.Problems
	}
	respondJSON(w, statusFor(err), body)
}
