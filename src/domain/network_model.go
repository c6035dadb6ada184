package domain

import (
	"time"

	"github.com/google/uuid"
)

// NetworkModel is the persisted form of a Network
type NetworkModel struct {
	ChainID        uint64         `gorm:"primaryKey;autoIncrement:false"`
	Name           string         `gorm:"type:varchar(64);not null"`
	RPCURL         string         `gorm:"column:rpc_url;type:text;not null"`
	Predefined     bool           `gorm:"not null;default:false"`
	Has7702        bool           `gorm:"column:has_7702;not null;default:false"`
	IsOptimistic   bool           `gorm:"not null;default:false"`
	Erc4337Enabled bool           `gorm:"column:erc4337_enabled;not null;default:false"`
	HasPaymaster   bool           `gorm:"not null;default:false"`
	DefaultBundler string         `gorm:"type:varchar(64);not null;default:''"`
	Bundlers       []BundlerModel `gorm:"foreignKey:ChainID;references:ChainID"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (NetworkModel) TableName() string {
	return "networks"
}

type BundlerModel struct {
	ID             uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ChainID        uint64    `gorm:"not null"`
	BundlerID      string    `gorm:"column:bundler_id;type:varchar(64);not null"`
	URL            string    `gorm:"column:url;type:text;not null"`
	GasPriceMethod string    `gorm:"type:varchar(128);not null;default:''"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (BundlerModel) TableName() string {
	return "bundlers"
}

func (m *NetworkModel) ToNetwork() Network {
	bundlers := make([]BundlerConfig, 0, len(m.Bundlers))
	for _, b := range m.Bundlers {
		bundlers = append(bundlers, BundlerConfig{
			ID:             BundlerID(b.BundlerID),
			URL:            b.URL,
			GasPriceMethod: b.GasPriceMethod,
		})
	}
	return Network{
		ChainID:      m.ChainID,
		Name:         m.Name,
		RPCURL:       m.RPCURL,
		Predefined:   m.Predefined,
		Has7702:      m.Has7702,
		IsOptimistic: m.IsOptimistic,
		Erc4337: Erc4337Settings{
			Enabled:        m.Erc4337Enabled,
			HasPaymaster:   m.HasPaymaster,
			DefaultBundler: BundlerID(m.DefaultBundler),
			Bundlers:       bundlers,
		},
	}
}

// NewNetworkModel converts n for persistence
func NewNetworkModel(n Network) *NetworkModel {
	bundlers := make([]BundlerModel, 0, len(n.Erc4337.Bundlers))
	for _, b := range n.Erc4337.Bundlers {
		bundlers = append(bundlers, BundlerModel{
			ChainID:        n.ChainID,
			BundlerID:      string(b.ID),
			URL:            b.URL,
			GasPriceMethod: b.GasPriceMethod,
		})
	}
	return &NetworkModel{
		ChainID:        n.ChainID,
		Name:           n.Name,
		RPCURL:         n.RPCURL,
		Predefined:     n.Predefined,
		Has7702:        n.Has7702,
		IsOptimistic:   n.IsOptimistic,
		Erc4337Enabled: n.Erc4337.Enabled,
		HasPaymaster:   n.Erc4337.HasPaymaster,
		DefaultBundler: string(n.Erc4337.DefaultBundler),
		Bundlers:       bundlers,
	}
}
