package repository

import (
	"context"

	"github.com/vybekart-ssh/Vybekart-Backend/internal/model"
	"gorm.io/gorm"
)

// CatalogRepository reads the product and category records sessions refer to.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// OwnedProductIDs returns the subset of ids that exist and belong to ownerID.
func (r *CatalogRepository) OwnedProductIDs(ctx context.Context, ownerID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var owned []string
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id IN ? AND owner_id = ?", ids, ownerID).
		Pluck("id", &owned).Error
	if err != nil {
		return nil, err
	}
	return owned, nil
}

// CategoryExists reports whether a category with id exists.
func (r *CatalogRepository) CategoryExists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
