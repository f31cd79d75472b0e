package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/service"
	"pagebuilder/internal/storage"
)

var (
	errBadRequest    = errors.New("bad request")
	errBlockNotFound = errors.New("block not found")
	errNoDrafts      = errors.New("drafts are disabled")
)

type (
	ErrorResponse struct {
		Error string `json:"error"`
	}

	CreatePageRequest struct {
		Title string `json:"title"`
		Slug  string `json:"slug"`
	}

	OpenSessionRequest struct {
		PageID string `json:"pageId"`
	}

	AddBlockRequest struct {
		Type string `json:"type"`
	}

	AddBlockResponse struct {
		ID   string      `json:"id"`
		View editor.View `json:"view"`
	}

	MoveBlockRequest struct {
		Direction editor.Direction `json:"direction"`
	}

	ReorderBlockRequest struct {
		TargetID string          `json:"targetId"`
		Position editor.Position `json:"position"`
	}

	SelectRequest struct {
		ID string `json:"id"`
	}

	DragOverRequest struct {
		ID       string        `json:"id"`
		Bounds   editor.Bounds `json:"bounds"`
		PointerY float64       `json:"pointerY"`
	}

	DragLeaveRequest struct {
		ID        string `json:"id"`
		IntoChild bool   `json:"intoChild"`
	}

	SaveDraftRequest struct {
		Label string `json:"label"`
	}
)

type sessionKey struct{}

func (s *Server) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.Sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *editor.Session {
	return r.Context().Value(sessionKey{}).(*editor.Session)
}

func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, domain.ErrPageNotFound),
		errors.Is(err, storage.ErrDraftNotFound),
		errors.Is(err, errBlockNotFound),
		errors.Is(err, errNoDrafts):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSaveInFlight),
		errors.Is(err, service.ErrDraftPageMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPatch),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, statusFor(err), err)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

func writeView(w http.ResponseWriter, r *http.Request, sess *editor.Session) {
	render.JSON(w, r, sess.View())
}

// ── Pages ──────────────────────────────────────────────────

func (s *Server) handleBlockTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, domain.BlockTypes)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.deps.Sessions.ListPages(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if pages == nil {
		pages = []domain.Page{}
	}
	render.JSON(w, r, pages)
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Title == "" {
		writeError(w, r, fmt.Errorf("%w: title is required", errBadRequest))
		return
	}
	page, err := s.deps.Sessions.CreatePage(r.Context(), req.Title, req.Slug)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, page)
}

func (s *Server) handlePreviewPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Sessions.PreviewPage(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	s.listDrafts(w, r, chi.URLParam(r, "pageID"))
}

func (s *Server) listDrafts(w http.ResponseWriter, r *http.Request, pageID string) {
	if s.deps.Autosave == nil {
		writeError(w, r, errNoDrafts)
		return
	}
	drafts, err := s.deps.Autosave.ListDrafts(r.Context(), pageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if drafts == nil {
		drafts = []storage.Draft{}
	}
	render.JSON(w, r, drafts)
}

// ── Sessions ───────────────────────────────────────────────

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.deps.Sessions.List())
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PageID == "" {
		writeError(w, r, fmt.Errorf("%w: pageId is required", errBadRequest))
		return
	}
	sess, err := s.deps.Sessions.Open(r.Context(), req.PageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	writeView(w, r, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeView(w, r, sessionFrom(r))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Close(r.Context(), sessionFrom(r).ID()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	s.deps.Hub.ServeSession(&s.upgrader, w, r, sessionFrom(r))
}

func (s *Server) handlePreviewSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Sessions.Preview(sessionFrom(r).ID())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// ── Blocks ─────────────────────────────────────────────────

func (s *Server) handleAddBlock(w http.ResponseWriter, r *http.Request) {
	var req AddBlockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := domain.ParseBlockType(req.Type)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	sess := sessionFrom(r)
	id := sess.AddBlock(t)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, AddBlockResponse{ID: id, View: sess.View()})
}

func (s *Server) handleRemoveBlock(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.RemoveBlock(chi.URLParam(r, "blockID"))
	writeView(w, r, sess)
}

func (s *Server) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	id := chi.URLParam(r, "blockID")
	if _, ok := sess.Document().Find(id); !ok {
		writeError(w, r, fmt.Errorf("%w: %s", errBlockNotFound, id))
		return
	}
	if err := sess.UpdateBlockData(id, patch); err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, sess)
}

func (s *Server) handleMoveBlock(w http.ResponseWriter, r *http.Request) {
	var req MoveBlockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Direction != editor.DirectionUp && req.Direction != editor.DirectionDown {
		writeError(w, r, fmt.Errorf("%w: direction must be up or down", errBadRequest))
		return
	}
	sess := sessionFrom(r)
	sess.MoveBlock(chi.URLParam(r, "blockID"), req.Direction)
	writeView(w, r, sess)
}

func (s *Server) handleReorderBlock(w http.ResponseWriter, r *http.Request) {
	var req ReorderBlockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Position != editor.PositionBefore && req.Position != editor.PositionAfter {
		writeError(w, r, fmt.Errorf("%w: position must be before or after", errBadRequest))
		return
	}
	sess := sessionFrom(r)
	sess.ReorderBlock(chi.URLParam(r, "blockID"), req.TargetID, req.Position)
	writeView(w, r, sess)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	sess.Select(req.ID)
	writeView(w, r, sess)
}

// ── Drag & drop ────────────────────────────────────────────

func (s *Server) handleDragStart(w http.ResponseWriter, r *http.Request) {
	var src editor.DragSource
	if err := decode(r, &src); err != nil {
		writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	sess.DragStart(src)
	writeView(w, r, sess)
}

func (s *Server) handleDragOver(w http.ResponseWriter, r *http.Request) {
	var req DragOverRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	sess.DragOver(req.ID, req.Bounds, req.PointerY)
	writeView(w, r, sess)
}

func (s *Server) handleDragLeave(w http.ResponseWriter, r *http.Request) {
	var req DragLeaveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	sess.DragLeave(req.ID, req.IntoChild)
	writeView(w, r, sess)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Drop()
	writeView(w, r, sess)
}

func (s *Server) handleDragEnd(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.DragEnd()
	writeView(w, r, sess)
}

// ── History & persistence ──────────────────────────────────

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Undo()
	writeView(w, r, sess)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Redo()
	writeView(w, r, sess)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.deps.Sessions.Save(r.Context(), sess.ID()); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeErrorStatus(w, r, status, err)
		return
	}
	writeView(w, r, sess)
}

func (s *Server) handleSessionDrafts(w http.ResponseWriter, r *http.Request) {
	s.listDrafts(w, r, sessionFrom(r).PageID())
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	if s.deps.Autosave == nil {
		writeError(w, r, errNoDrafts)
		return
	}
	var req SaveDraftRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	d, err := s.deps.Autosave.SaveDraft(r.Context(), sessionFrom(r).ID(), req.Label)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, d)
}

func (s *Server) handleRestoreDraft(w http.ResponseWriter, r *http.Request) {
	if s.deps.Autosave == nil {
		writeError(w, r, errNoDrafts)
		return
	}
	sess := sessionFrom(r)
	if err := s.deps.Autosave.Restore(r.Context(), sess.ID(), chi.URLParam(r, "draftID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, sess)
}
