package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
	"template_shop_server/internal/flow"
	"template_shop_server/internal/lead"
	"template_shop_server/internal/middleware"
	"template_shop_server/internal/types"
)

// APIHandler holds dependencies for API endpoints.
type APIHandler struct {
	sessions *flow.Sessions
	leads    *lead.Client
	logger   *zap.Logger
}

// NewAPIHandler initializes a new API handler with its dependencies.
// leads may be nil, in which case POST /api/leads answers 503.
func NewAPIHandler(sessions *flow.Sessions, leads *lead.Client, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		sessions: sessions,
		leads:    leads,
		logger:   logger.Named("APIHandler"),
	}
}

// --- Structs for API Requests/Responses ---

type GenerateRequest struct {
	WebsiteType      string   `json:"websiteType"`
	Topic            string   `json:"topic"`
	Sections         []string `json:"sections"`
	ColorScheme      string   `json:"colorScheme"`
	SpecificRequests string   `json:"specificRequests"`
	Description      string   `json:"description"`
}

func (r GenerateRequest) preferences() types.UserPreferences {
	return types.UserPreferences{
		WebsiteType:      r.WebsiteType,
		Topic:            r.Topic,
		Sections:         r.Sections,
		ColorScheme:      r.ColorScheme,
		SpecificRequests: r.SpecificRequests,
		Description:      r.Description,
	}
}

type ErrorResponse struct {
	Error string         `json:"error"`
	Kind  apperr.Kind    `json:"kind"`
	State *flow.Snapshot `json:"state,omitempty"`
}

// --- API Handlers ---

// GET /api/state
func (h *APIHandler) GetState(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// POST /api/generate
func (h *APIHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Kind: apperr.KindValidation})
		return
	}
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.Submit(c.Request.Context(), req.preferences()))
}

// POST /api/regenerate
func (h *APIHandler) Regenerate(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.Regenerate(c.Request.Context()))
}

// POST /api/error/dismiss
func (h *APIHandler) DismissError(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.DismissError()
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// POST /api/start-over
func (h *APIHandler) StartOver(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.StartOver(c.Request.Context()))
}

// POST /api/leads
func (h *APIHandler) SubmitLead(c *gin.Context) {
	if h.leads == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Lead capture is not configured.", Kind: apperr.KindNetwork})
		return
	}
	var l lead.Lead
	if err := c.ShouldBindJSON(&l); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Kind: apperr.KindValidation})
		return
	}
	if err := h.leads.Submit(c.Request.Context(), l); err != nil {
		h.fail(c, nil, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Thank you! We will be in touch shortly."})
}

// controller resolves the session's controller, writing a 500 on failure.
func (h *APIHandler) controller(c *gin.Context) (*flow.Controller, bool) {
	id := c.GetString(middleware.SessionKey)
	ctrl, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to open session", zap.String("session_id", id), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: apperr.MessageOf(err), Kind: apperr.KindInternal})
		return nil, false
	}
	return ctrl, true
}

// respond writes the snapshot on success, or the mapped error.
func (h *APIHandler) respond(c *gin.Context, ctrl *flow.Controller, err error) {
	if err != nil {
		h.fail(c, ctrl, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func (h *APIHandler) fail(c *gin.Context, ctrl *flow.Controller, err error) {
	status := StatusOf(err)
	body := ErrorResponse{Error: apperr.MessageOf(err), Kind: apperr.KindOf(err)}

	switch {
	case errors.Is(err, flow.ErrBusy), errors.Is(err, flow.ErrTransition), errors.Is(err, flow.ErrStale):
		body.Error = err.Error()
	case errors.Is(err, context.Canceled):
		body.Error = "Request cancelled."
	}
	if ctrl != nil {
		s := ctrl.Snapshot()
		body.State = &s
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, flow.ErrBusy), errors.Is(err, flow.ErrTransition), errors.Is(err, flow.ErrStale):
		return http.StatusConflict
	case errors.Is(err, flow.ErrSessionLimit):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindGeneration:
		return http.StatusBadGateway
	case apperr.KindNetwork:
		return http.StatusServiceUnavailable
	case apperr.KindCheckout:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
