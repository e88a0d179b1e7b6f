package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuonghoang741/vivivi-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the owner-scoped virtual currency ledger. Credits are applied
// as atomic increments so concurrent claims cannot lose a write.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new economy Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Credit adds vcoin/ruby to the owner's balance, creating the balance row
// lazily on first credit. A zero credit is a no-op.
func (svc *Service) Credit(ctx context.Context, owner model.Owner, vcoin, ruby int64) error {
	return svc.CreditTx(svc.db.WithContext(ctx), owner, vcoin, ruby)
}

// CreditTx is Credit running inside the caller's transaction; claim paths
// use it so currency, XP and the claimed flag commit together.
func (svc *Service) CreditTx(tx *gorm.DB, owner model.Owner, vcoin, ruby int64) error {
	if !owner.Valid() {
		return fmt.Errorf("economy: invalid owner")
	}
	if vcoin < 0 || ruby < 0 {
		return fmt.Errorf("economy: negative credit (vcoin=%d ruby=%d)", vcoin, ruby)
	}
	if vcoin == 0 && ruby == 0 {
		return nil
	}

	if err := svc.ensureBalance(tx, owner); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if vcoin > 0 {
		updates["vcoin"] = gorm.Expr("vcoin + ?", vcoin)
	}
	if ruby > 0 {
		updates["ruby"] = gorm.Expr("ruby + ?", ruby)
	}
	if err := owner.Scope(tx.Model(&model.CurrencyBalance{})).Updates(updates).Error; err != nil {
		return fmt.Errorf("economy: credit: %w", err)
	}

	svc.logger.Info("currency credited",
		zap.String("owner", owner.Key()),
		zap.Int64("vcoin", vcoin),
		zap.Int64("ruby", ruby))
	return nil
}

// Balance returns the owner's balance. An owner that was never credited
// gets a zero balance without creating a row.
func (svc *Service) Balance(ctx context.Context, owner model.Owner) (*model.CurrencyBalance, error) {
	var bal model.CurrencyBalance
	err := owner.Scope(svc.db.WithContext(ctx)).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CurrencyBalance{UserID: owner.UserID, ClientID: owner.ClientID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("economy: balance: %w", err)
	}
	return &bal, nil
}

func (svc *Service) ensureBalance(tx *gorm.DB, owner model.Owner) error {
	var bal model.CurrencyBalance
	err := owner.Scope(tx).First(&bal).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("economy: lookup: %w", err)
	}
	bal = model.CurrencyBalance{UserID: owner.UserID, ClientID: owner.ClientID}
	return tx.Create(&bal).Error
}
