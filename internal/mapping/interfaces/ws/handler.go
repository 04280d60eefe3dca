package ws

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	mappingapp "axis-studio/internal/mapping/application"
)

var upgrader = websocket.Upgrader{
	// Origin checks happen at the reverse proxy in deployments.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler runs the interactive drag channel. One connection drives one
// drag gesture at a time; frames stream in, the constrained position
// streams back.
type Handler struct {
	editor *mappingapp.EditorService
	logger *log.Logger
}

func NewHandler(editor *mappingapp.EditorService, logger *log.Logger) (*Handler, error) {
	if editor == nil {
		return nil, errors.New("ws handler: nil editor")
	}
	return &Handler{editor: editor, logger: logger}, nil
}

type clientFrame struct {
	Type  string  `json:"type"`
	Key   int64   `json:"key,omitempty"`
	Index int     `json:"index,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Inner float64 `json:"inner,omitempty"`
	Outer float64 `json:"outer,omitempty"`
}

type serverFrame struct {
	Type  string  `json:"type"`
	Index int     `json:"index,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Inner float64 `json:"inner,omitempty"`
	Outer float64 `json:"outer,omitempty"`
	Error string  `json:"error,omitempty"`
}

// ServeHTTP upgrades the connection and pumps drag frames until the
// client disconnects. A connection dropped mid-gesture discards the
// uncommitted drag.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The request context dies when this handler returns only after the
	// read loop exits, so it is safe to thread through commits.
	ctx := r.Context()
	dragging := false
	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if dragging {
				h.editor.CancelCurveDrag()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logf("ws: read failed: %v", err)
			}
			return
		}

		reply := h.handleFrame(ctx, frame, &dragging)
		if err := conn.WriteJSON(reply); err != nil {
			if dragging {
				h.editor.CancelCurveDrag()
			}
			h.logf("ws: write failed: %v", err)
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, frame clientFrame, dragging *bool) serverFrame {
	switch frame.Type {
	case "curve_begin":
		if err := h.editor.BeginCurveDrag(frame.Key); err != nil {
			return errorFrame(err)
		}
		*dragging = true
		return serverFrame{Type: "begun"}
	case "curve_frame":
		point, err := h.editor.CurveDrag(frame.Index, frame.X, frame.Y)
		if err != nil {
			return errorFrame(err)
		}
		return serverFrame{Type: "point", Index: frame.Index, X: point.X, Y: point.Y}
	case "curve_end":
		point, err := h.editor.EndCurveDrag(ctx, frame.Index, frame.X, frame.Y)
		if err != nil {
			return errorFrame(err)
		}
		*dragging = false
		return serverFrame{Type: "committed", Index: frame.Index, X: point.X, Y: point.Y}
	case "curve_cancel":
		h.editor.CancelCurveDrag()
		*dragging = false
		return serverFrame{Type: "cancelled"}
	case "deadzone_frame", "deadzone_end":
		zone, err := h.editor.DragDeadZone(ctx, frame.Inner, frame.Outer, frame.Type == "deadzone_frame")
		if err != nil {
			return errorFrame(err)
		}
		kind := "deadzone"
		if frame.Type == "deadzone_end" {
			kind = "deadzone_committed"
		}
		return serverFrame{Type: kind, Inner: zone.Inner / 100, Outer: zone.Outer / 100}
	default:
		return serverFrame{Type: "error", Error: "unknown frame type " + frame.Type}
	}
}

func errorFrame(err error) serverFrame {
	return serverFrame{Type: "error", Error: err.Error()}
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
