package api

import (
	"net/http"
	"time"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
	handlers "template_shop_server/internal/api"
	"template_shop_server/internal/middleware"
)

// RegisterRoutes sets up the API endpoints and groups them logically.
// generateLimit guards the routes that call the generation service.
func RegisterRoutes(router *gin.Engine, h *handlers.APIHandler, session, generateLimit gin.HandlerFunc) {
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	// Sandboxed preview documents, loaded by the front end's iframe.
	router.GET("/preview/:id", session, h.Preview)

	apiGroup := router.Group("/api", session)
	{
		apiGroup.GET("/state", h.GetState)
		apiGroup.POST("/generate", generateLimit, h.Generate)
		apiGroup.POST("/regenerate", generateLimit, h.Regenerate)
		apiGroup.POST("/error/dismiss", h.DismissError)
		apiGroup.POST("/start-over", h.StartOver)
		apiGroup.POST("/leads", h.SubmitLead)
	}

	cartGroup := apiGroup.Group("/cart")
	{
		cartGroup.GET("", h.GetCart)
		cartGroup.POST("/view", h.ViewCart)
		cartGroup.POST("/items", h.AddToCart)
		cartGroup.POST("/services", h.AddService)
		cartGroup.DELETE("/items/:index", h.RemoveItem)
		cartGroup.PATCH("/items/:index", h.ChangeQuantity)
	}

	checkoutGroup := apiGroup.Group("/checkout")
	{
		checkoutGroup.POST("", h.Checkout)
		checkoutGroup.POST("/start", h.StartCheckout)
		checkoutGroup.POST("/back", h.GoBack)
		checkoutGroup.GET("/success", h.CheckoutSuccess)
	}

	templateGroup := apiGroup.Group("/templates/:id")
	{
		templateGroup.GET("/download", h.Download)
		templateGroup.GET("/embed", h.Embed)
	}
}

// GenerateRateLimiter limits generation calls per client IP. Session ids
// are minted for any cookieless request, so they cannot key the limit.
func GenerateRateLimiter(store rateli.Store, logger *zap.Logger) gin.HandlerFunc {
	return rateli.RateLimiter(store, &rateli.Options{
		ErrorHandler: func(c *gin.Context, info rateli.Info) {
			logger.Warn("Rate limit exceeded",
				zap.String("client_ip", c.ClientIP()),
				zap.String("session_id", c.GetString(middleware.SessionKey)),
				zap.String("path", c.Request.URL.Path),
				zap.Time("reset_time", info.ResetTime),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handlers.ErrorResponse{
				Error: "Too many generation requests. Try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
				Kind:  apperr.KindValidation,
			})
		},
		KeyFunc: func(c *gin.Context) string {
			return "generate:" + c.ClientIP()
		},
	})
}
