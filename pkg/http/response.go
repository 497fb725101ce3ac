package http

import (
	"encoding/json"
	"net/http"

	apperrors "carbid/pkg/errors"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

type SuccessResponse struct {
	Data any `json:"data,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type PaginatedResponse struct {
	Data       any   `json:"data"`
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int64 `json:"offset"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, err error) error {
	var statusCode int
	var errResp ErrorResponse

	switch e := err.(type) {
	case *apperrors.AppError:
		statusCode = e.HTTPStatus
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		errResp = ErrorResponse{
			Error:   e.Message,
			Details: e.Details,
		}
	default:
		statusCode = http.StatusInternalServerError
		errResp = ErrorResponse{
			Error: "Internal server error",
		}
	}

	return WriteJSON(w, statusCode, errResp)
}

func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

func WriteCreated(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func WritePaginated(w http.ResponseWriter, data any, totalCount int64, limit int, offset int64) error {
	return WriteJSON(w, http.StatusOK, PaginatedResponse{
		Data:       data,
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
	})
}
