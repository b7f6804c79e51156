package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"leadgen-engine/internal/secrets"
)

type SecretsHandler struct {
	Set    func(name, value string) error
	Delete func(name string) error
}

type setSecretReq struct {
	Value string `json:"value"`
}

func secretName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/secrets/"), "/")
	if !secrets.Known(name) {
		WriteError(w, r, http.StatusNotFound, "unknown_secret", "unknown secret "+name)
		return "", false
	}
	return name, true
}

// Put stores /api/secrets/{name} in the OS keychain. The value is read at
// the next start.
func (h SecretsHandler) Put(w http.ResponseWriter, r *http.Request) {
	name, ok := secretName(w, r)
	if !ok {
		return
	}
	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := h.Set(name, req.Value); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name, ok := secretName(w, r)
	if !ok {
		return
	}
	if err := h.Delete(name); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
