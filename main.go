package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"axis-studio/internal/audit"
	"axis-studio/internal/auth"
	"axis-studio/internal/backendstore"
	"axis-studio/internal/config"
	"axis-studio/internal/eventing"
	mappingapp "axis-studio/internal/mapping/application"
	"axis-studio/internal/mapping/application/events"
	mappingpg "axis-studio/internal/mapping/infrastructure/postgres"
	mappinghttp "axis-studio/internal/mapping/interfaces/http"
	mappingws "axis-studio/internal/mapping/interfaces/ws"
	"axis-studio/internal/observability/metrics"
	profilesapp "axis-studio/internal/profiles/application"
	profilespg "axis-studio/internal/profiles/infrastructure/postgres"
	profileshttp "axis-studio/internal/profiles/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()
	auditRepo := audit.NewRepository(db)

	backend, err := backendstore.NewClient(cfg.BackendBaseURL, cfg.BackendToken)
	if err != nil {
		logger.Fatalf("backend client error: %v", err)
	}
	overrides := mappingpg.NewOverrideStore(db)

	bus := eventing.NewInMemoryBus()
	bus.Subscribe(eventing.EventTypeOf[events.ConflictDetected](), func(ctx context.Context, event any) error {
		evt, ok := event.(events.ConflictDetected)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("conflict detected: profile=%s sub=%s keys=%v", evt.ProfileID, evt.SubProfileID, evt.SourceKeys)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[events.SyncFlushed](), func(ctx context.Context, event any) error {
		evt, ok := event.(events.SyncFlushed)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("sync flushed: profile=%s sub=%s pushed=%d buffered=%d failed=%d",
			evt.ProfileID, evt.SubProfileID, evt.Pushed, evt.Buffered, evt.Failed)
		return nil
	})

	reconciler, err := mappingapp.NewReconciler(backend, overrides, logger,
		mappingapp.WithReconcilerBus(bus))
	if err != nil {
		logger.Fatalf("reconciler error: %v", err)
	}

	syncOpts := []mappingapp.SyncOption{mappingapp.WithSyncBus(bus)}
	if cfg.DebounceWindow > 0 {
		syncOpts = append(syncOpts, mappingapp.WithDebounceWindow(cfg.DebounceWindow))
	}
	coordinator, err := mappingapp.NewSyncCoordinator(backend, overrides, logger, syncOpts...)
	if err != nil {
		logger.Fatalf("sync coordinator error: %v", err)
	}
	defer coordinator.Stop()

	editorOpts := []mappingapp.EditorOption{mappingapp.WithEditorBus(bus)}
	if cfg.FrameInterval > 0 {
		editorOpts = append(editorOpts, mappingapp.WithFrameInterval(cfg.FrameInterval))
	}
	editor, err := mappingapp.NewEditorService(reconciler, coordinator, logger, editorOpts...)
	if err != nil {
		logger.Fatalf("editor error: %v", err)
	}

	profileService, err := profilesapp.NewService(
		profilespg.NewProfileRepository(db),
		profilespg.NewSubProfileRepository(db),
		overrides,
		logger,
	)
	if err != nil {
		logger.Fatalf("profile service error: %v", err)
	}

	mappingHandler, err := mappinghttp.NewHandler(editor, auditRepo)
	if err != nil {
		logger.Fatalf("mapping handler error: %v", err)
	}
	exportHandler, err := mappinghttp.NewExportHandler(editor, profileService)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}
	profileHandler, err := profileshttp.NewHandler(profileService, auditRepo)
	if err != nil {
		logger.Fatalf("profile handler error: %v", err)
	}
	dragHandler, err := mappingws.NewHandler(editor, logger)
	if err != nil {
		logger.Fatalf("drag handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/profiles", profileHandler)
	mux.Handle("/api/v1/profiles/", profileHandler)
	mux.Handle("/api/v1/mappings", mappingHandler)
	mux.Handle("/api/v1/mappings/", mappingHandler)
	mux.Handle("/api/v1/exports/", exportHandler)
	mux.Handle("/ws/edit", dragHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack is forwarded so the drag channel can upgrade through the
// logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
