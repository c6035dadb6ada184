package repository

import (
	"context"
	"fmt"

	"github.com/ethaccount/walletcore/src/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NetworkRepository struct {
	db *gorm.DB
}

func NewNetworkRepository(db *gorm.DB) *NetworkRepository {
	return &NetworkRepository{db: db}
}

// ListNetworks retrieves every network with its bundlers
func (r *NetworkRepository) ListNetworks(ctx context.Context) ([]domain.Network, error) {
	var models []domain.NetworkModel
	if err := r.db.WithContext(ctx).Preload("Bundlers").Order("chain_id").Find(&models).Error; err != nil {
		return nil, err
	}

	networks := make([]domain.Network, 0, len(models))
	for i := range models {
		networks = append(networks, models[i].ToNetwork())
	}
	return networks, nil
}

// FindNetwork retrieves one network by chain id
func (r *NetworkRepository) FindNetwork(ctx context.Context, chainID uint64) (*domain.Network, error) {
	var model domain.NetworkModel
	if err := r.db.WithContext(ctx).Preload("Bundlers").Where("chain_id = ?", chainID).First(&model).Error; err != nil {
		return nil, err
	}
	network := model.ToNetwork()
	return &network, nil
}

// SaveNetwork upserts the network and replaces its bundler list
func (r *NetworkRepository) SaveNetwork(ctx context.Context, network domain.Network) error {
	model := domain.NewNetworkModel(network)
	bundlers := model.Bundlers
	model.Bundlers = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chain_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "rpc_url", "predefined", "has_7702", "is_optimistic",
				"erc4337_enabled", "has_paymaster", "default_bundler", "updated_at",
			}),
		}).Create(model).Error; err != nil {
			return fmt.Errorf("failed to save network %d: %w", network.ChainID, err)
		}

		if err := tx.Where("chain_id = ?", network.ChainID).Delete(&domain.BundlerModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear bundlers of %d: %w", network.ChainID, err)
		}
		if len(bundlers) == 0 {
			return nil
		}
		if err := tx.Create(&bundlers).Error; err != nil {
			return fmt.Errorf("failed to save bundlers of %d: %w", network.ChainID, err)
		}
		return nil
	})
}

// DeleteNetwork removes the network, its bundlers go with it
func (r *NetworkRepository) DeleteNetwork(ctx context.Context, chainID uint64) error {
	return r.db.WithContext(ctx).Where("chain_id = ?", chainID).Delete(&domain.NetworkModel{}).Error
}
