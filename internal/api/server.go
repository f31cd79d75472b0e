package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/service"
)

// Deps holds what the HTTP API serves. Autosave is optional; the draft
// routes answer 404 without it.
type Deps struct {
	Sessions       *service.SessionService
	Autosave       *service.AutosaveService
	Hub            *Hub
	AllowedOrigins []string
}

type Server struct {
	deps     Deps
	router   chi.Router
	upgrader websocket.Upgrader
}

func New(deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = NewHub(0)
	}
	s := &Server{deps: deps}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/block-types", s.handleBlockTypes)

		r.Route("/pages", func(r chi.Router) {
			r.Get("/", s.handleListPages)
			r.Post("/", s.handleCreatePage)
			r.Get("/{pageID}/preview", s.handlePreviewPage)
			r.Get("/{pageID}/drafts", s.handleListDrafts)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleOpenSession)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Use(s.sessionCtx)
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleCloseSession)
				r.Get("/ws", s.handleWebsocket)
				r.Get("/preview", s.handlePreviewSession)

				r.Post("/blocks", s.handleAddBlock)
				r.Delete("/blocks/{blockID}", s.handleRemoveBlock)
				r.Patch("/blocks/{blockID}", s.handleUpdateBlock)
				r.Post("/blocks/{blockID}/move", s.handleMoveBlock)
				r.Post("/blocks/{blockID}/reorder", s.handleReorderBlock)
				r.Post("/select", s.handleSelect)

				r.Post("/drag/start", s.handleDragStart)
				r.Post("/drag/over", s.handleDragOver)
				r.Post("/drag/leave", s.handleDragLeave)
				r.Post("/drag/drop", s.handleDrop)
				r.Post("/drag/end", s.handleDragEnd)

				r.Post("/undo", s.handleUndo)
				r.Post("/redo", s.handleRedo)
				r.Post("/save", s.handleSave)

				r.Get("/drafts", s.handleSessionDrafts)
				r.Post("/drafts", s.handleSaveDraft)
				r.Post("/drafts/{draftID}/restore", s.handleRestoreDraft)
			})
		})
	})
	return r
}

// ListenAndServe serves until ctx is done, then drains for up to 10s.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logrus.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.deps.AllowedOrigins {
		if matchOrigin(allowed, origin) {
			return true
		}
	}
	return false
}

// matchOrigin supports a single "*" wildcard, as go-chi/cors does.
func matchOrigin(pattern, origin string) bool {
	if pattern == "*" {
		return true
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' {
			prefix, suffix := pattern[:i], pattern[i+1:]
			return len(origin) >= len(prefix)+len(suffix) &&
				origin[:len(prefix)] == prefix &&
				origin[len(origin)-len(suffix):] == suffix
		}
	}
	return pattern == origin
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logrus.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
