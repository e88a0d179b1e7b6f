package stats

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cuonghoang741/vivivi-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MinEnergy = 0
	MaxEnergy = 100
)

// LevelForXP maps accumulated XP to a level. Applied after the additive XP
// credit, never before.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}

// Service owns the per-owner player stats row: level, xp, energy and the
// login streak counter.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new stats Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// GetOrCreate returns the owner's stats, creating the row with defaults on
// first access.
func (svc *Service) GetOrCreate(ctx context.Context, owner model.Owner) (*model.PlayerStats, error) {
	return svc.getOrCreateTx(svc.db.WithContext(ctx), owner)
}

func (svc *Service) getOrCreateTx(tx *gorm.DB, owner model.Owner) (*model.PlayerStats, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("stats: invalid owner")
	}
	var st model.PlayerStats
	err := owner.Scope(tx).First(&st).Error
	if err == nil {
		return &st, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("stats: lookup: %w", err)
	}
	st = model.PlayerStats{
		UserID:   owner.UserID,
		ClientID: owner.ClientID,
		Level:    1,
		Energy:   MaxEnergy,
	}
	if err := tx.Create(&st).Error; err != nil {
		return nil, fmt.Errorf("stats: create: %w", err)
	}
	return &st, nil
}

// AddXP credits xp atomically and recomputes the level from the post-credit
// total. Returns the new level and whether it rose.
func (svc *Service) AddXP(ctx context.Context, owner model.Owner, xp int) (newLevel int, leveledUp bool, err error) {
	return svc.AddXPTx(svc.db.WithContext(ctx), owner, xp)
}

// AddXPTx is AddXP running inside the caller's transaction.
func (svc *Service) AddXPTx(tx *gorm.DB, owner model.Owner, xp int) (int, bool, error) {
	st, err := svc.getOrCreateTx(tx, owner)
	if err != nil {
		return 0, false, err
	}
	if xp <= 0 {
		return st.Level, false, nil
	}

	if err := owner.Scope(tx.Model(&model.PlayerStats{})).
		Update("xp", gorm.Expr("xp + ?", xp)).Error; err != nil {
		return 0, false, fmt.Errorf("stats: credit xp: %w", err)
	}

	// Recompute level from the credited total.
	var after model.PlayerStats
	if err := owner.Scope(tx).First(&after).Error; err != nil {
		return 0, false, fmt.Errorf("stats: reload: %w", err)
	}
	newLevel := LevelForXP(after.XP)
	if newLevel > after.Level {
		if err := owner.Scope(tx.Model(&model.PlayerStats{})).
			Update("level", newLevel).Error; err != nil {
			return 0, false, fmt.Errorf("stats: level up: %w", err)
		}
		svc.logger.Info("level up",
			zap.String("owner", owner.Key()),
			zap.Int("level", newLevel),
			zap.Int64("xp", after.XP))
		return newLevel, true, nil
	}
	return after.Level, false, nil
}

// AddEnergy credits energy clamped to [0,100]; a credit that would not
// change the stored value is skipped.
func (svc *Service) AddEnergy(ctx context.Context, owner model.Owner, energy int) error {
	return svc.AddEnergyTx(svc.db.WithContext(ctx), owner, energy)
}

// AddEnergyTx is AddEnergy running inside the caller's transaction.
func (svc *Service) AddEnergyTx(tx *gorm.DB, owner model.Owner, energy int) error {
	st, err := svc.getOrCreateTx(tx, owner)
	if err != nil {
		return err
	}
	next := st.Energy + energy
	if next > MaxEnergy {
		next = MaxEnergy
	}
	if next < MinEnergy {
		next = MinEnergy
	}
	if next == st.Energy {
		return nil
	}
	return owner.Scope(tx.Model(&model.PlayerStats{})).Update("energy", next).Error
}

// SetLoginStreak stores the owner's current login streak counter.
func (svc *Service) SetLoginStreak(ctx context.Context, owner model.Owner, streak int) error {
	if _, err := svc.GetOrCreate(ctx, owner); err != nil {
		return err
	}
	return owner.Scope(svc.db.WithContext(ctx).Model(&model.PlayerStats{})).
		Update("login_streak", streak).Error
}
