package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"template_shop_server/internal/apperr"
)

type QuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type ServiceRequest struct {
	ID string `json:"id" binding:"required"`
}

// GET /api/cart
func (h *APIHandler) GetCart(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot().Cart)
}

// POST /api/cart/view
func (h *APIHandler) ViewCart(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.ViewCart())
}

// POST /api/cart/items adds the template currently previewed.
func (h *APIHandler) AddToCart(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.AddToCart(c.Request.Context()))
}

// POST /api/cart/services
func (h *APIHandler) AddService(c *gin.Context) {
	var req ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Kind: apperr.KindValidation})
		return
	}
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.AddService(c.Request.Context(), req.ID))
}

// DELETE /api/cart/items/:index
func (h *APIHandler) RemoveItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.RemoveItem(c.Request.Context(), index))
}

// PATCH /api/cart/items/:index
func (h *APIHandler) ChangeQuantity(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Kind: apperr.KindValidation})
		return
	}
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respond(c, ctrl, ctrl.ChangeQuantity(c.Request.Context(), index, req.Delta))
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Cart index must be a number.", Kind: apperr.KindValidation})
		return 0, false
	}
	return index, true
}
