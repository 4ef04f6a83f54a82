package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"hiddystays/internal/infra/config"
	"hiddystays/internal/infra/obs"
)

type AvailabilityHTTP interface {
	Get(c *gin.Context)
}

type BookingHTTP interface {
	Create(c *gin.Context)
	Cancel(c *gin.Context)
	ListMine(c *gin.Context)
}

type PaymentHTTP interface {
	CreateSession(c *gin.Context)
	Retry(c *gin.Context)
	Verify(c *gin.Context)
	Webhook(c *gin.Context)
}

type HostCalendarHTTP interface {
	Block(c *gin.Context)
	Unblock(c *gin.Context)
	SetDate(c *gin.Context)
}

type Handlers struct {
	Availability   AvailabilityHTTP
	Booking        BookingHTTP
	Payment        PaymentHTTP
	HostCalendar   HostCalendarHTTP
	AuthMiddleware gin.HandlerFunc
	// PaymentLimit guards guest payment routes; the webhook is exempt.
	PaymentLimit gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "Stripe-Signature"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Availability != nil {
		api.GET("/availability", h.Availability.Get)
	}
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.POST("/bookings/cancel", h.Booking.Cancel)
		api.GET("/me/bookings", h.Booking.ListMine)
	}
	if h.Payment != nil {
		api.POST("/payments/webhook", h.Payment.Webhook)
		payments := api.Group("/payments")
		if h.PaymentLimit != nil {
			payments.Use(h.PaymentLimit)
		}
		payments.POST("/create-session", h.Payment.CreateSession)
		payments.POST("/retry", h.Payment.Retry)
		payments.POST("/verify", h.Payment.Verify)
	}
	if h.HostCalendar != nil {
		host := api.Group("/host/properties/:id")
		host.POST("/blocks", h.HostCalendar.Block)
		host.DELETE("/blocks/:blockId", h.HostCalendar.Unblock)
		host.PUT("/dates/:date", h.HostCalendar.SetDate)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
