package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"fornax/internal/pipeline"
	"fornax/internal/services/archivematica"
	"fornax/internal/sips"
)

// sipView is the JSON shape of one SIP record.
type sipView struct {
	ID                int64           `json:"id"`
	Identifier        string          `json:"identifier"`
	Status            string          `json:"status"`
	Path              string          `json:"path"`
	Origin            string          `json:"origin"`
	ExternalReference string          `json:"external_reference,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ModifiedAt        time.Time       `json:"modified_at"`
}

func viewOf(sip *sips.SIP) sipView {
	view := sipView{
		ID:                sip.ID,
		Identifier:        sip.Identifier,
		Status:            string(sip.Status),
		Path:              sip.Path,
		Origin:            sip.Origin,
		ExternalReference: sip.ExternalReference,
		CreatedAt:         sip.CreatedAt,
		ModifiedAt:        sip.ModifiedAt,
	}
	if sip.MetadataJSON != "" {
		view.Metadata = json.RawMessage(sip.MetadataJSON)
	}
	return view
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	health, err := s.store.Health(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"total":       health.Total,
		"waiting":     health.Waiting,
		"in_progress": health.InProgress,
		"completed":   health.Completed,
	})
}

type createSIPRequest struct {
	Identifier string         `json:"identifier"`
	Origin     string         `json:"origin"`
	Metadata   map[string]any `json:"metadata"`
}

func (s *Server) handleCreateSIP(w http.ResponseWriter, r *http.Request) {
	var req createSIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, errors.New("identifier is required"))
		return
	}
	if _, err := s.cfg.Origin(req.Origin); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	metadataJSON, err := sips.EncodeMetadata(req.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	path := filepath.Join(s.cfg.Paths.SourceDir, req.Identifier+".tar.gz")
	sip, err := s.store.Create(r.Context(), req.Identifier, req.Origin, path, metadataJSON)
	if err != nil {
		if errors.Is(err, sips.ErrDuplicateIdentifier) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(sip))
}

func (s *Server) handleListSIPs(w http.ResponseWriter, r *http.Request) {
	var statuses []sips.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := sips.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", raw))
			return
		}
		statuses = append(statuses, status)
	}
	items, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]sipView, 0, len(items))
	for _, item := range items {
		views = append(views, viewOf(item))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetSIP(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	sip, err := s.store.GetByIdentifier(r.Context(), identifier)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sip == nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sip))
}

// stageTrigger builds the handler for one stage's trigger endpoint. Stage
// failures surface as 500s; busy, idle, and already-running outcomes are
// normal responses so external schedulers can poll the trigger blindly.
func (s *Server) stageTrigger(name sips.StageName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := s.runner.RunStage(r.Context(), name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		switch outcome.Kind {
		case pipeline.OutcomeProcessed:
			writeDetail(w, http.StatusOK, outcome.Message, outcome.Identifier)
		case pipeline.OutcomeBusy:
			writeDetail(w, http.StatusOK, outcome.Message, outcome.Identifier)
		default:
			writeDetail(w, http.StatusOK, outcome.Message)
		}
	}
}

type cleanupRequest struct {
	Identifier string `json:"identifier"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, errors.New("identifier is required"))
		return
	}
	result, err := s.cleanup.Remove(req.Identifier)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if result.Removed {
		writeDetail(w, http.StatusOK, "package removed", result.Identifier)
		return
	}
	writeDetail(w, http.StatusOK, "package not found")
}

// closeCompleted builds the handler that hides completed Archivematica units
// across all opted-in origins.
func (s *Server) closeCompleted(unitType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		closed, err := archivematica.CloseAllCompleted(r.Context(), s.cfg, s.clients, unitType)
		origins := make([]string, 0, len(closed))
		for origin := range closed {
			origins = append(origins, origin)
		}
		sort.Strings(origins)
		var uuids []string
		for _, origin := range origins {
			uuids = append(uuids, closed[origin]...)
		}
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"detail":  err.Error(),
				"objects": uuids,
			})
			return
		}
		writeDetail(w, http.StatusOK, fmt.Sprintf("%d %ss closed", len(uuids), unitType), uuids...)
	}
}
