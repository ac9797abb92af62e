package api

import (
	"encoding/json"
	"net/http"
)

// detailResponse is the shape every action endpoint returns: a human-readable
// message and the identifiers or UUIDs the action touched.
type detailResponse struct {
	Detail  string   `json:"detail"`
	Objects []string `json:"objects"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string, objects ...string) {
	if objects == nil {
		objects = []string{}
	}
	writeJSON(w, code, detailResponse{Detail: detail, Objects: objects})
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"detail": err.Error()})
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
}
