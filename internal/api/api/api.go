package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"regportal/cmd/middleware"
	"regportal/internal/auth"
	"regportal/internal/service"
)

type Routers struct {
	Service     service.Service
	Tokens      *auth.TokenIssuer
	FrontendDir string
	Mode        string
}

func NewRouters(r *Routers) *ginext.Engine {
	mode := r.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	app := ginext.New(mode)
	app.MaxMultipartMemory = 8 << 20

	app.Use(gin.Recovery())
	app.Use(middleware.LoggingMiddleware())
	app.Use(middleware.Metrics())
	app.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:   []string{"Content-Disposition", middleware.RequestIDHeader},
	}))

	app.GET("/metrics", middleware.MetricsHandler())
	app.GET("/health", func(c *ginext.Context) {
		c.String(200, "ok")
	})

	apiGroup := app.Group("/api")

	apiGroup.POST("/register", r.Service.SubmitRegistration)
	apiGroup.POST("/auth/login", r.Service.Login)
	apiGroup.GET("/trainings", r.Service.ListTrainings)
	apiGroup.GET("/payment-methods", r.Service.ListActivePaymentMethods)

	admin := apiGroup.Group("/admin", middleware.AdminOnly(r.Tokens))

	admin.GET("/me", r.Service.Me)

	admin.GET("/trainings", r.Service.ListTrainings)
	admin.POST("/trainings", r.Service.CreateTraining)
	admin.PUT("/trainings", r.Service.UpdateTraining)
	admin.DELETE("/trainings", r.Service.DeleteTraining)

	admin.GET("/payment-methods", r.Service.ListPaymentMethods)
	admin.POST("/payment-methods", r.Service.CreatePaymentMethod)
	admin.PUT("/payment-methods", r.Service.UpdatePaymentMethod)
	admin.DELETE("/payment-methods", r.Service.DeletePaymentMethod)

	admin.GET("/registrations", r.Service.ListRegistrations)
	admin.GET("/registrations/export-csv", r.Service.ExportRegistrationsCSV)
	admin.PUT("/registrations", r.Service.UpdateRegistration)
	admin.DELETE("/registrations", r.Service.DeleteRegistration)

	if r.FrontendDir != "" {
		dir := r.FrontendDir
		app.GET("/", func(c *ginext.Context) {
			c.File(dir + "/index.html")
		})
		app.GET("/admin", func(c *ginext.Context) {
			c.File(dir + "/admin.html")
		})
		app.Static("/frontend", dir)
	}

	return app
}
