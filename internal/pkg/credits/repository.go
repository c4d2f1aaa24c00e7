package credits

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/busbuskimki/tarotpay/app/models"
)

// Repository provides the DB operations the credits service needs.
type Repository interface {
	FindLedgerEntryByRef(ctx context.Context, refType, refID string) (*models.LedgerEntry, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	// GrantCredits inserts the ledger entry and applies the balance increment
	// in one transaction. It returns created=false without error when the
	// unique (ref_type, ref_id) key already holds a row, leaving the balance
	// untouched.
	GrantCredits(ctx context.Context, entry *models.LedgerEntry) (created bool, err error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a credits repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindLedgerEntryByRef(ctx context.Context, refType, refID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ?", refType, refID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *gormRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// errDuplicateGrant aborts the transaction when the ledger row already exists.
var errDuplicateGrant = errors.New("duplicate grant")

func (r *gormRepository) GrantCredits(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The unique constraint, not the caller's pre-check, decides whether
		// this delivery is fresh. DoNothing keeps a concurrent replay from
		// failing the whole request.
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ref_type"}, {Name: "ref_id"}},
			DoNothing: true,
		}).Create(entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errDuplicateGrant
		}

		// Atomic increment. A read-modify-write here would lose updates when
		// two purchases for the same user race.
		upd := tx.Model(&models.Account{}).
			Where("id = ?", entry.UserID).
			UpdateColumn("credit_balance", gorm.Expr("credit_balance + ?", entry.DeltaCredits))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, errDuplicateGrant) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
