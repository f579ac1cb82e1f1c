package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	"github.com/routong/routong-backend/pkg/pagination"
)

// Repository manages persistence for contracts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contract *models.Contract) error
	Find(ctx context.Context, contractID uuid.UUID) (*models.Contract, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Contract, error)
	UpdateStatus(ctx context.Context, contractID uuid.UUID, from []enums.ContractStatus, to enums.ContractStatus, settledAt *time.Time) (int64, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Contract, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a contract repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *repository) Find(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", contractID).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

// UpdateStatus applies a guarded transition. The returned count is zero when
// the contract was not in any of the expected source states.
func (r *repository) UpdateStatus(ctx context.Context, contractID uuid.UUID, from []enums.ContractStatus, to enums.ContractStatus, settledAt *time.Time) (int64, error) {
	updates := map[string]any{"status": to}
	if settledAt != nil {
		updates["settled_at"] = *settledAt
	}
	result := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ? AND status IN ?", contractID, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.WithContext(ctx).
		Where("status IN ? AND deadline < ?", []enums.ContractStatus{enums.ContractStatusPending, enums.ContractStatusActive}, cutoff).
		Order("deadline ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}
