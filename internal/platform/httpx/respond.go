package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ListResponse is the envelope for paged listings.
type ListResponse struct {
	Status  int `json:"status"`
	Results any `json:"results"`
	Count   int `json:"count"`
}

// DataResponse is the envelope for single payloads.
type DataResponse struct {
	Status int `json:"status"`
	Data   any `json:"data"`
}

// MessageResponse is the envelope for bodiless outcomes.
type MessageResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// List sends a ListResponse.
func List(w http.ResponseWriter, results any, count int) {
	JSON(w, http.StatusOK, ListResponse{Status: http.StatusOK, Results: results, Count: count})
}

// Data sends a DataResponse.
func Data(w http.ResponseWriter, status int, data any) {
	JSON(w, status, DataResponse{Status: status, Data: data})
}

// Message sends a MessageResponse.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, MessageResponse{Status: status, Message: message})
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes JSON request body into the target struct, rejecting unknown fields.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
