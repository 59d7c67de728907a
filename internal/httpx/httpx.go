// Package httpx holds the small JSON response helpers shared by the HTTP
// handler packages.
package httpx

import (
	"encoding/json"
	"net/http"
)

// OK writes v as a 200 JSON response.
func OK(w http.ResponseWriter, v any) {
	write(w, http.StatusOK, v)
}

// Created writes v as a 201 JSON response.
func Created(w http.ResponseWriter, v any) {
	write(w, http.StatusCreated, v)
}

// Error writes a JSON error body with the given status code.
func Error(w http.ResponseWriter, msg string, code int) {
	write(w, code, map[string]string{"error": msg})
}

// UserID extracts the x-user-id header forwarded by the gateway. When the
// header is missing it writes a 401 and returns ok=false.
func UserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		Error(w, "missing x-user-id header", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func write(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
