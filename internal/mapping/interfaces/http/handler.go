package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"axis-studio/internal/audit"
	"axis-studio/internal/auth"
	curve "axis-studio/internal/curve/domain"
	mappingapp "axis-studio/internal/mapping/application"
	mapping "axis-studio/internal/mapping/domain"
)

// Handler provides mapping editor HTTP endpoints under /api/v1/mappings.
type Handler struct {
	editor      *mappingapp.EditorService
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(editor *mappingapp.EditorService, auditLogger audit.Logger) (*Handler, error) {
	if editor == nil {
		return nil, errors.New("mapping handler: nil editor")
	}
	return &Handler{editor: editor, auditLogger: auditLogger}, nil
}

type recordDTO struct {
	Key           int64         `json:"key"`
	SourceKey     string        `json:"source_key"`
	OutputControl string        `json:"output_control"`
	CurveType     string        `json:"curve_type"`
	Points        []curve.Point `json:"points"`
	Smooth        bool          `json:"smooth"`
	DeadZoneInner float64       `json:"dead_zone_inner"`
	DeadZoneOuter float64       `json:"dead_zone_outer"`
	HasWarning    bool          `json:"has_warning"`
	Modified      bool          `json:"modified"`
}

func toDTO(record *mapping.Record) recordDTO {
	return recordDTO{
		Key:           record.Identity(),
		SourceKey:     record.SourceKey,
		OutputControl: record.OutputControl,
		CurveType:     string(record.CurveType),
		Points:        record.Points,
		Smooth:        record.Smooth,
		DeadZoneInner: record.DeadZoneInner,
		DeadZoneOuter: record.DeadZoneOuter,
		HasWarning:    record.HasWarning,
		Modified:      record.Modified,
	}
}

func toDTOs(records []*mapping.Record) []recordDTO {
	out := make([]recordDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toDTO(record))
	}
	return out
}

// ServeHTTP routes /api/v1/mappings requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/mappings")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			h.handleLoad(w, r)
		case http.MethodPost:
			h.handleAdd(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case rest == "selection":
		switch r.Method {
		case http.MethodPost:
			h.handleSelect(w, r)
		case http.MethodPatch:
			h.handleSelectionCommit(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		h.handleRecord(w, r, rest)
	}
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profile_id")
	subProfileID := r.URL.Query().Get("sub_profile_id")
	if profileID == "" || subProfileID == "" {
		http.Error(w, "profile_id/sub_profile_id required", http.StatusBadRequest)
		return
	}
	records, err := h.editor.Load(r.Context(), profileID, subProfileID)
	if err != nil {
		http.Error(w, "load mappings error", http.StatusBadGateway)
		return
	}
	respondJSON(w, map[string]any{"data": toDTOs(records)})
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	record := h.editor.AddRecord()
	h.logAudit(r, "mapping.add", strconv.FormatInt(record.Identity(), 10), nil)
	respondJSON(w, toDTO(record))
}

type recordPatch struct {
	SourceKey     *string `json:"source_key"`
	OutputControl *string `json:"output_control"`
}

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	key, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid record key", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodPatch:
		h.handlePatch(w, r, key)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, key)
	case len(parts) == 2 && parts[1] == "points" && r.Method == http.MethodPost:
		h.handleAddPoint(w, r, key)
	case len(parts) == 3 && parts[1] == "points" && r.Method == http.MethodDelete:
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			http.Error(w, "invalid point index", http.StatusBadRequest)
			return
		}
		h.handleRemovePoint(w, r, key, index)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request, key int64) {
	var patch recordPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var record *mapping.Record
	var err error
	if patch.SourceKey != nil {
		record, err = h.editor.CommitSourceKey(r.Context(), key, *patch.SourceKey)
		if err != nil {
			respondEditorError(w, err)
			return
		}
	}
	if patch.OutputControl != nil {
		record, err = h.editor.CommitOutputControl(r.Context(), key, *patch.OutputControl)
		if err != nil {
			respondEditorError(w, err)
			return
		}
	}
	if record == nil {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}
	h.logAudit(r, "mapping.update", strconv.FormatInt(key, 10), patch)
	respondJSON(w, toDTO(record))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, key int64) {
	if err := h.editor.RemoveRecord(r.Context(), key); err != nil {
		respondEditorError(w, err)
		return
	}
	h.logAudit(r, "mapping.delete", strconv.FormatInt(key, 10), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddPoint(w http.ResponseWriter, r *http.Request, key int64) {
	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	point, err := h.editor.AddCurvePoint(r.Context(), key, req.X, req.Y)
	if err != nil {
		respondEditorError(w, err)
		return
	}
	record, _ := h.editor.Record(key)
	respondJSON(w, map[string]any{"point": point, "record": toDTO(record)})
}

func (h *Handler) handleRemovePoint(w http.ResponseWriter, r *http.Request, key int64, index int) {
	if err := h.editor.RemoveCurvePoint(r.Context(), key, index); err != nil {
		respondEditorError(w, err)
		return
	}
	record, _ := h.editor.Record(key)
	respondJSON(w, toDTO(record))
}

type selectRequest struct {
	Keys []int64 `json:"keys"`
}

type selectionDTO struct {
	Keys          []int64         `json:"keys"`
	Mixed         map[string]bool `json:"mixed"`
	DeadZoneInner *float64        `json:"dead_zone_inner,omitempty"`
	DeadZoneOuter *float64        `json:"dead_zone_outer,omitempty"`
	Smooth        *bool           `json:"smooth,omitempty"`
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	selection := h.editor.LoadSelection(req.Keys...)
	respondJSON(w, selectionToDTO(selection))
}

type selectionPatch struct {
	DeadZoneInner *float64 `json:"dead_zone_inner"`
	DeadZoneOuter *float64 `json:"dead_zone_outer"`
	Smooth        *bool    `json:"smooth"`
}

func (h *Handler) handleSelectionCommit(w http.ResponseWriter, r *http.Request) {
	var patch selectionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if patch.DeadZoneInner != nil {
		if err := h.editor.CommitDeadZoneInner(r.Context(), *patch.DeadZoneInner); err != nil {
			respondEditorError(w, err)
			return
		}
	}
	if patch.DeadZoneOuter != nil {
		if err := h.editor.CommitDeadZoneOuter(r.Context(), *patch.DeadZoneOuter); err != nil {
			respondEditorError(w, err)
			return
		}
	}
	if patch.Smooth != nil {
		if err := h.editor.CommitSmooth(r.Context(), *patch.Smooth); err != nil {
			respondEditorError(w, err)
			return
		}
	}
	h.logAudit(r, "mapping.selection.update", "", patch)
	respondJSON(w, selectionToDTO(h.editor.Selection()))
}

func selectionToDTO(selection *mappingapp.Selection) selectionDTO {
	dto := selectionDTO{Mixed: map[string]bool{}}
	for _, record := range selection.Records() {
		dto.Keys = append(dto.Keys, record.Identity())
	}
	for _, field := range []mappingapp.Field{
		mappingapp.FieldDeadZoneInner,
		mappingapp.FieldDeadZoneOuter,
		mappingapp.FieldSmooth,
		mappingapp.FieldCurve,
	} {
		dto.Mixed[string(field)] = selection.IsMixed(field)
	}
	if value, ok := selection.DeadZoneInner(); ok {
		dto.DeadZoneInner = &value
	}
	if value, ok := selection.DeadZoneOuter(); ok {
		dto.DeadZoneOuter = &value
	}
	if value, ok := selection.Smooth(); ok {
		dto.Smooth = &value
	}
	return dto
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
		ResourceType: "mapping",
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

func respondEditorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mappingapp.ErrRecordNotFound):
		http.Error(w, "record not found", http.StatusNotFound)
	case errors.Is(err, mappingapp.ErrEmptySelection):
		http.Error(w, "empty selection", http.StatusBadRequest)
	case errors.Is(err, curve.ErrPointTooClose),
		errors.Is(err, curve.ErrCurveFull),
		errors.Is(err, curve.ErrFixedPoint),
		errors.Is(err, curve.ErrPointIndex):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
