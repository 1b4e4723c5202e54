package routing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// maxRequestBytes bounds the size of a submission request, source code and
// every test case included.
const maxRequestBytes = 1_048576 * 8

func handleJSONResponse(w http.ResponseWriter, body any, code int) {
	response, err := json.Marshal(body)

	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func handleErrorResponse(w http.ResponseWriter, code int, messages ...string) {
	handleJSONResponse(w, ErrorResponse{Errors: messages, Code: code}, code)
}

func handleDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError

	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		handleErrorResponse(w, http.StatusBadRequest, msg)

	case errors.Is(err, io.ErrUnexpectedEOF):
		handleErrorResponse(w, http.StatusBadRequest, "Request body contains badly-formed JSON")

	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		handleErrorResponse(w, http.StatusBadRequest, msg)

	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
		handleErrorResponse(w, http.StatusBadRequest, msg)

	case errors.Is(err, io.EOF):
		handleErrorResponse(w, http.StatusBadRequest, "Request body must not be empty")

	case errors.As(err, &maxBytesError):
		msg := fmt.Sprintf("Request body must not be larger than %dMB", maxBytesError.Limit/1_048576)
		handleErrorResponse(w, http.StatusRequestEntityTooLarge, msg)

	// Otherwise default to logging the error and sending a 500 Internal
	// Server Error response.
	default:
		log.Error().Err(err).Msg("failed to decode request")
		handleErrorResponse(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// NewRouter registers every route of the submission api.
func NewRouter(h *SubmissionHandlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/submissions", h.HandleCreateSubmission).Methods(http.MethodPost)
	r.HandleFunc("/submissions/{id}", h.HandleGetSubmission).Methods(http.MethodGet)
	r.HandleFunc("/languages", h.HandleGetLanguages).Methods(http.MethodGet)

	return r
}
