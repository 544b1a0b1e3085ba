package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"template_shop_server/internal/apperr"
)

type CheckoutRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// POST /api/checkout/start
func (h *APIHandler) StartCheckout(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.ProceedToCheckout())
}

// POST /api/checkout/back
func (h *APIHandler) GoBack(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.GoBack())
}

// POST /api/checkout
// A completed payment answers with the Download snapshot; a hosted one
// answers with the Checkout snapshot carrying payment.redirectUrl.
func (h *APIHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Kind: apperr.KindValidation})
		return
	}
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.Checkout(c.Request.Context(), req.Name, req.Email))
}

// GET /api/checkout/success?session_id=...
// The payment provider redirects the buyer here after a hosted checkout.
func (h *APIHandler) CheckoutSuccess(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.CompletePurchase(c.Request.Context(), c.Query("session_id")))
}
