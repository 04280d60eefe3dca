package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	mappingapp "axis-studio/internal/mapping/application"
	"axis-studio/internal/mapping/interfaces"
	"axis-studio/internal/observability/metrics"
	profilesapp "axis-studio/internal/profiles/application"
	profiles "axis-studio/internal/profiles/domain"
)

// ExportHandler serves binding sheet downloads under /api/v1/exports.
type ExportHandler struct {
	editor   *mappingapp.EditorService
	profiles *profilesapp.Service
	now      func() time.Time
}

func NewExportHandler(editor *mappingapp.EditorService, profileService *profilesapp.Service) (*ExportHandler, error) {
	if editor == nil {
		return nil, errors.New("export handler: nil editor")
	}
	if profileService == nil {
		return nil, errors.New("export handler: nil profile service")
	}
	return &ExportHandler{editor: editor, profiles: profileService, now: time.Now}, nil
}

// ServeHTTP handles GET /api/v1/exports/bindings.{pdf,xlsx}?profile_id=&sub_profile_id=.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	format := strings.TrimPrefix(r.URL.Path, "/api/v1/exports/bindings.")
	if format != "pdf" && format != "xlsx" {
		http.NotFound(w, r)
		return
	}

	profileID := r.URL.Query().Get("profile_id")
	subProfileID := r.URL.Query().Get("sub_profile_id")
	if profileID == "" || subProfileID == "" {
		http.Error(w, "profile_id/sub_profile_id required", http.StatusBadRequest)
		return
	}

	profile, subs, err := h.profiles.Get(r.Context(), profileID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, "load profile error", http.StatusInternalServerError)
		return
	}
	subName := subProfileID
	for _, sub := range subs {
		if sub.ID == subProfileID {
			subName = sub.Name
			break
		}
	}

	records, err := h.editor.Load(r.Context(), profileID, subProfileID)
	if err != nil {
		http.Error(w, "load mappings error", http.StatusBadGateway)
		return
	}

	scope := interfaces.ExportScope{
		ProfileName:    profile.Name,
		SubProfileName: subName,
		GeneratedAt:    h.now(),
	}

	started := h.now()
	var payload []byte
	var contentType string
	switch format {
	case "pdf":
		contentType = "application/pdf"
		payload, err = interfaces.BuildBindingsPDF(scope, records)
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		payload, err = interfaces.BuildBindingsXLSX(scope, records)
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, h.now().Sub(started))
		http.Error(w, "build export error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, h.now().Sub(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "bindings."+format))
	_, _ = w.Write(payload)
}
