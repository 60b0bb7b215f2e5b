// Package httpapi exposes the confirmation page and the admin dashboard API
// over gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/medconfirm"
	"github.com/MrEthical07/medconfirm/internal/rate"
	"github.com/MrEthical07/medconfirm/jwt"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the router needs. Throttle, Metrics and Health
// are optional.
type Deps struct {
	Engine   *medconfirm.Engine
	Throttle *rate.Limiter
	Verifier *jwt.Verifier

	Admins    AdminAPI
	Doctors   DoctorAPI
	Catalog   CatalogAPI
	Dashboard DashboardAPI

	Metrics http.Handler
	Health  func(ctx context.Context) error
	Logger  zerolog.Logger

	AllowedOrigins []string
	TrustedProxies []string
	// SecureCookies marks the device cookie Secure.
	SecureCookies bool
}

// NewRouter wires middleware and routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Engine == nil {
		return nil, errors.New("httpapi: engine required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("httpapi: token verifier required")
	}
	if deps.Admins == nil || deps.Doctors == nil || deps.Catalog == nil || deps.Dashboard == nil {
		return nil, errors.New("httpapi: admin services required")
	}
	if len(deps.AllowedOrigins) == 0 {
		return nil, errors.New("httpapi: allowed origins required")
	}

	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}

	r.Use(RequestID())
	r.Use(Recovery(deps.Logger))
	r.Use(RequestLogger(deps.Logger))
	r.Use(CORS(deps.AllowedOrigins))

	r.GET("/healthz", healthHandler(deps.Health))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	confirm := newConfirmationHandler(deps.Engine, deps.Logger, deps.SecureCookies)
	r.GET("/confirme", confirm.page)
	r.POST("/confirme/run", Throttle(deps.Throttle, deps.Logger), confirm.run)

	api := r.Group("/api/v1")
	api.Use(AdminAuth(deps.Verifier, deps.Admins))
	registerAdminRoutes(api, deps)

	return r, nil
}

func registerAdminRoutes(api *gin.RouterGroup, deps Deps) {
	dashboard := &dashboardHandler{service: deps.Dashboard}
	api.GET("/dashboard/stats", dashboard.stats)

	doctors := &doctorHandler{service: deps.Doctors}
	api.GET("/doctors", doctors.list)
	api.POST("/doctors", doctors.create)
	api.GET("/doctors/:id", doctors.get)
	api.PUT("/doctors/:id", doctors.update)
	api.DELETE("/doctors/:id", doctors.delete)
	api.PUT("/doctors/:id/status", doctors.setStatus)
	api.PUT("/doctors/:id/subscription", doctors.assignSubscription)

	catalog := &catalogHandler{service: deps.Catalog}
	api.GET("/subscription-types", catalog.listSubscriptionTypes)
	api.POST("/subscription-types", catalog.createSubscriptionType)
	api.GET("/subscription-types/:id", catalog.getSubscriptionType)
	api.PUT("/subscription-types/:id", catalog.updateSubscriptionType)
	api.DELETE("/subscription-types/:id", catalog.deleteSubscriptionType)
	api.GET("/events", catalog.listEvents)
	api.POST("/events", catalog.createEvent)
	api.GET("/events/:id", catalog.getEvent)
	api.PUT("/events/:id", catalog.updateEvent)
	api.DELETE("/events/:id", catalog.deleteEvent)

	admins := &adminHandler{service: deps.Admins}
	api.GET("/admins", admins.list)
	api.POST("/admins", RequireSuperAdmin(), admins.create)
	api.DELETE("/admins/:id", RequireSuperAdmin(), admins.delete)
	api.GET("/profile", admins.profile)
	api.PUT("/profile", admins.updateProfile)
}

// CORS applies the origin allow-list to the admin API. The confirmation
// routes are skipped: the flow checks the reporting origin itself and reports
// a rejection to the page.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	handler := cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/confirme") {
			c.Next()
			return
		}
		handler(c)
	}
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
