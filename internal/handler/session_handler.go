package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/errs"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/model"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/service"
	"go.uber.org/zap"
)

// SessionHandler handles REST API for live sessions.
type SessionHandler struct {
	svc    service.SessionServicer
	logger *zap.Logger
}

// NewSessionHandler creates a session handler (D: принимает SessionServicer).
func NewSessionHandler(svc service.SessionServicer, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, logger: logger}
}

// writeError maps domain errors to HTTP status codes.
func (h *SessionHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, errs.ErrConfiguration):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("session_id", c.Param("id")),
			zap.Error(err))
		msg := "internal error"
		if errors.Is(err, errs.ErrCreationFailed) {
			msg = errs.ErrCreationFailed.Error()
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// CreateSession godoc
// POST /streams
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), CallerID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListActive godoc
// GET /streams/active?page=&limit=
func (h *SessionHandler) ListActive(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a number"})
		return
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	out, err := h.svc.ListActive(c.Request.Context(), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// GetSession godoc
// GET /streams/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// UpdateSession godoc
// PATCH /streams/:id
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	var req model.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	sess, err := h.svc.Update(c.Request.Context(), c.Param("id"), CallerID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// StopSession godoc
// PATCH /streams/:id/stop
func (h *SessionHandler) StopSession(c *gin.Context) {
	sess, err := h.svc.Stop(c.Request.Context(), c.Param("id"), CallerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// DeleteSession godoc
// DELETE /streams/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.svc.Remove(c.Request.Context(), c.Param("id"), CallerID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// JoinToken godoc
// POST /streams/:id/token: the body is optional.
func (h *SessionHandler) JoinToken(c *gin.Context) {
	var req model.JoinTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	resp, err := h.svc.IssueJoinToken(c.Request.Context(), c.Param("id"), CallerID(c), req.Identity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ViewerToken godoc
// GET /streams/:id/viewer-token?identity=
func (h *SessionHandler) ViewerToken(c *gin.Context) {
	resp, err := h.svc.IssueViewerToken(c.Request.Context(), c.Param("id"), c.Query("identity"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
