package handler

import (
	"strconv"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/gin-gonic/gin"
)

// NetworkLister exposes the configured networks
type NetworkLister interface {
	List() []*domain.Network
	Get(chainID uint64) (*domain.Network, error)
}

type NetworkHandler struct {
	networks NetworkLister
}

func NewNetworkHandler(networks NetworkLister) *NetworkHandler {
	return &NetworkHandler{
		networks: networks,
	}
}

// networkView hides node and bundler URLs, which may carry API keys
type networkView struct {
	ChainID        uint64             `json:"chainId"`
	Name           string             `json:"name"`
	Has7702        bool               `json:"has7702"`
	Erc4337Enabled bool               `json:"erc4337Enabled"`
	HasPaymaster   bool               `json:"hasPaymaster"`
	Bundlers       []domain.BundlerID `json:"bundlers"`
}

func newNetworkView(n *domain.Network) networkView {
	return networkView{
		ChainID:        n.ChainID,
		Name:           n.Name,
		Has7702:        n.Has7702,
		Erc4337Enabled: n.Erc4337.Enabled,
		HasPaymaster:   n.Erc4337.HasPaymaster,
		Bundlers:       n.BundlerIDs(),
	}
}

// ListNetworks godoc
// @Summary List networks
// @Description List the networks estimations can run on
// @Tags network
// @Produce json
// @Success 200 {object} StandardResponse
// @Router /networks [get]
func (h *NetworkHandler) ListNetworks(c *gin.Context) {
	networks := h.networks.List()
	views := make([]networkView, 0, len(networks))
	for _, n := range networks {
		views = append(views, newNetworkView(n))
	}
	respondWithSuccess(c, views)
}

// GetNetwork godoc
// @Summary Get a network
// @Tags network
// @Produce json
// @Param chainId path int true "Chain id"
// @Success 200 {object} StandardResponse
// @Failure 404 {object} StandardResponse
// @Router /networks/{chainId} [get]
func (h *NetworkHandler) GetNetwork(c *gin.Context) {
	chainID, err := strconv.ParseUint(c.Param("chainId"), 10, 64)
	if err != nil {
		respondWithError(c, domain.NewError(domain.ErrorCodeParameterInvalid, err, domain.WithMsg("invalid chain id")))
		return
	}
	network, err := h.networks.Get(chainID)
	if err != nil {
		respondWithError(c, domain.NewError(domain.ErrorCodeResourceNotFound, err, domain.WithMsg("network not found")))
		return
	}
	respondWithSuccess(c, newNetworkView(network))
}
