package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"template_shop_server/internal/apperr"
	"template_shop_server/internal/export"
	"template_shop_server/internal/render"
)

// GET /api/templates/:id/download[?artifact=html|css|js]
// Only templates this session has paid for can be downloaded.
func (h *APIHandler) Download(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	id := c.Param("id")
	tpl, bought := ctrl.Purchased(id)
	if !bought {
		if _, known := ctrl.Lookup(id); known {
			c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: "Purchase this template to download it.", Kind: apperr.KindCheckout})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}

	f, found := export.Find(tpl, c.Query("artifact"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "This template has no such file"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	c.Data(http.StatusOK, f.Type, []byte(f.Content))
}

// GET /api/templates/:id/embed
func (h *APIHandler) Embed(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	tpl, found := ctrl.Lookup(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": tpl.ID, "name": tpl.Name, "iframe": render.Embed(render.FromTemplate(tpl), tpl.Name)})
}

// GET /preview/:id serves the assembled document under a sandbox CSP so
// generated script runs with an opaque origin.
func (h *APIHandler) Preview(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	tpl, found := ctrl.Lookup(c.Param("id"))
	if !found {
		c.String(http.StatusNotFound, "Template not found")
		return
	}
	c.Header("Content-Security-Policy", render.CSP)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(render.Document(render.FromTemplate(tpl), tpl.Name)))
}
