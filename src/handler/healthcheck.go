package handler

import (
	"github.com/gin-gonic/gin"
)

type healthStatus struct {
	Status   string   `json:"status"`
	Networks []uint64 `json:"networks"`
}

// HandleHealthCheck godoc
// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} StandardResponse
// @Router /health [get]
func HandleHealthCheck(networks NetworkLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		loaded := networks.List()
		chainIDs := make([]uint64, 0, len(loaded))
		for _, n := range loaded {
			chainIDs = append(chainIDs, n.ChainID)
		}
		status := "ok"
		if len(chainIDs) == 0 {
			status = "no networks loaded"
		}
		respondWithSuccess(c, healthStatus{Status: status, Networks: chainIDs})
	}
}
