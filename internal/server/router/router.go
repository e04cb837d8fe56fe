package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/metrics"
	"github.com/mamadbah2/medrefill/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares. auth guards
// every /api route.
func New(medicines *handlers.MedicineHandler, notifications *handlers.NotificationHandler, auth gin.HandlerFunc, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(metricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", auth)

	meds := api.Group("/medicines")
	meds.GET("", medicines.List)
	meds.POST("", medicines.Create)
	meds.GET("/dashboard-summary", medicines.DashboardSummary)
	meds.GET("/status/:status", medicines.ListByStatus)
	meds.GET("/:id", medicines.Get)
	meds.PUT("/:id", medicines.Update)
	meds.DELETE("/:id", medicines.Delete)
	meds.POST("/:id/take-dose", medicines.TakeDose)
	meds.POST("/:id/refill", medicines.Refill)

	notif := api.Group("/notifications")
	notif.POST("/trigger-reminder-check", notifications.TriggerReminderCheck)
	notif.POST("/send-immediate-reminder/:medicineId", notifications.SendImmediateReminder)
	notif.GET("/status", notifications.Status)
	notif.GET("/history", notifications.History)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
