package domain

type BundlerID string

type BundlerConfig struct {
	ID             BundlerID `json:"id"`
	URL            string    `json:"url"`
	GasPriceMethod string    `json:"gasPriceMethod"`
}

type Erc4337Settings struct {
	Enabled        bool            `json:"enabled"`
	HasPaymaster   bool            `json:"hasPaymaster"`
	DefaultBundler BundlerID       `json:"defaultBundler"`
	Bundlers       []BundlerConfig `json:"bundlers"`
}

type Network struct {
	ChainID      uint64          `json:"chainId"`
	Name         string          `json:"name"`
	RPCURL       string          `json:"rpcUrl"`
	Predefined   bool            `json:"predefined"`
	Has7702      bool            `json:"has7702"`
	IsOptimistic bool            `json:"isOptimistic"`
	Erc4337      Erc4337Settings `json:"erc4337"`
}

// BundlerIDs returns the configured bundlers, default bundler first
func (n *Network) BundlerIDs() []BundlerID {
	ids := make([]BundlerID, 0, len(n.Erc4337.Bundlers))
	if _, ok := n.Bundler(n.Erc4337.DefaultBundler); ok {
		ids = append(ids, n.Erc4337.DefaultBundler)
	}
	for _, b := range n.Erc4337.Bundlers {
		if b.ID != n.Erc4337.DefaultBundler {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func (n *Network) Bundler(id BundlerID) (BundlerConfig, bool) {
	for _, b := range n.Erc4337.Bundlers {
		if b.ID == id {
			return b, true
		}
	}
	return BundlerConfig{}, false
}
