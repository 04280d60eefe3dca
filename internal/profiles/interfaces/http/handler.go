package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"axis-studio/internal/audit"
	"axis-studio/internal/auth"
	profilesapp "axis-studio/internal/profiles/application"
	profiles "axis-studio/internal/profiles/domain"
)

// Handler provides profile CRUD endpoints under /api/v1/profiles.
type Handler struct {
	service     *profilesapp.Service
	auditLogger audit.Logger
}

func NewHandler(service *profilesapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("profiles handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/profiles requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/profiles")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	default:
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1:
			h.handleProfile(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "subprofiles" && r.Method == http.MethodPost:
			h.handleAddSubProfile(w, r, parts[0])
		case len(parts) == 3 && parts[1] == "subprofiles" && r.Method == http.MethodDelete:
			h.handleRemoveSubProfile(w, r, parts[0], parts[2])
		default:
			http.NotFound(w, r)
		}
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		http.Error(w, "list profiles error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"data": list})
}

type createProfileRequest struct {
	Name       string `json:"name"`
	DeviceName string `json:"device_name"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	profile, err := h.service.Create(r.Context(), req.Name, req.DeviceName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logAudit(r, "profile.create", profile.ID, req)
	w.WriteHeader(http.StatusCreated)
	respondJSON(w, profile)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		profile, subs, err := h.service.Get(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, map[string]any{"profile": profile, "sub_profiles": subs})
	case http.MethodPatch:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := h.service.Rename(r.Context(), id, req.Name); err != nil {
			respondServiceError(w, err)
			return
		}
		h.logAudit(r, "profile.rename", id, req)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := h.service.Delete(r.Context(), id); err != nil {
			respondServiceError(w, err)
			return
		}
		h.logAudit(r, "profile.delete", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAddSubProfile(w http.ResponseWriter, r *http.Request, profileID string) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	sub, err := h.service.AddSubProfile(r.Context(), profileID, req.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.logAudit(r, "subprofile.create", sub.ID, req)
	w.WriteHeader(http.StatusCreated)
	respondJSON(w, sub)
}

func (h *Handler) handleRemoveSubProfile(w http.ResponseWriter, r *http.Request, profileID, subID string) {
	if err := h.service.RemoveSubProfile(r.Context(), profileID, subID); err != nil {
		respondServiceError(w, err)
		return
	}
	h.logAudit(r, "subprofile.delete", subID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logAudit(r *http.Request, action, resourceID string, metadata any) {
	if h.auditLogger == nil {
		return
	}
	var meta json.RawMessage
	if metadata != nil {
		meta, _ = json.Marshal(metadata)
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "profile",
		ResourceID:   resourceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profiles.ErrNotFound):
		http.Error(w, "profile not found", http.StatusNotFound)
	case errors.Is(err, profilesapp.ErrLastSubProfile):
		http.Error(w, "cannot remove the last sub-profile", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
