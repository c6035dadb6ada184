package handler

import (
	"github.com/gin-gonic/gin"
)

// Services are the core components the HTTP API serves
type Services struct {
	AccountOps AccountOpService
	Networks   NetworkLister
}

// RegisterRoutes mounts the v1 API. Account op endpoints require the shared
// secret when apiSecret is set.
func RegisterRoutes(router *gin.Engine, services Services, apiSecret string) {
	accountOpHandler := NewAccountOpHandler(services.AccountOps)
	networkHandler := NewNetworkHandler(services.Networks)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HandleHealthCheck(services.Networks))

		v1.GET("/networks", networkHandler.ListNetworks)
		v1.GET("/networks/:chainId", networkHandler.GetNetwork)

		protected := v1.Group("")
		if apiSecret != "" {
			protected.Use(SharedSecretMiddleware(apiSecret))
		}

		protected.POST("/account-ops/estimate", accountOpHandler.Estimate)
		protected.POST("/account-ops/plan", accountOpHandler.Plan)
		protected.POST("/account-ops/user-operation", accountOpHandler.PrepareUserOperation)
		protected.POST("/sessions/:id/commit", accountOpHandler.CommitSession)
	}
}
