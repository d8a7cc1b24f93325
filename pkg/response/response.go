package response

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the envelope used by the storefront API. Payloads sit under
// "data"; human readable outcomes (including auth failures) under "message".
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Message extracts the envelope message from a raw body. It returns "" when
// the body is not a JSON object.
func Message(body []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

// DecodeData unmarshals the "data" member of an envelope into v.
func DecodeData(body []byte, v interface{}) error {
	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("invalid response envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("response envelope has no data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("invalid response data: %w", err)
	}
	return nil
}

func JSON(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	env := Response{
		Success: statusCode < 400,
		Message: message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			InternalError(w, "failed to encode response")
			return
		}
		env.Data = raw
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(env)
}

// Raw writes body as-is, for endpoints that answer outside the envelope.
func Raw(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, "", data)
}

func Created(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusCreated, message, data)
}

func Error(w http.ResponseWriter, statusCode int, message string) {
	JSON(w, statusCode, message, nil)
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}
