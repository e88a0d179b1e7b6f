package loginreward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuonghoang741/vivivi-server/game/catalog"
	"github.com/cuonghoang741/vivivi-server/game/economy"
	"github.com/cuonghoang741/vivivi-server/game/notify"
	"github.com/cuonghoang741/vivivi-server/game/reward"
	"github.com/cuonghoang741/vivivi-server/game/stats"
	"github.com/cuonghoang741/vivivi-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CycleDays is the length of the login reward cycle; day CycleDays wraps
// back to day 1.
const CycleDays = 30

const dateLayout = "2006-01-02"

// Status is the owner's hydrated login reward state.
type Status struct {
	Record    model.LoginRewardRecord     `json:"record"`
	NextDay   int                         `json:"next_day"`
	Claimable bool                        `json:"claimable"`
	Templates []model.LoginRewardTemplate `json:"templates"`
}

// ClaimResult reports what a successful login claim granted.
type ClaimResult struct {
	Day    int           `json:"day"`
	Reward reward.Reward `json:"reward"`
	Energy int           `json:"energy"`
}

// Evaluate decides, from the stored record and today's calendar date, which
// cycle day a claim would grant and whether one is due. The decision uses
// whole calendar-day gaps, not 24-hour windows:
//
//	no prior claim    -> claimable, day max(current,1)
//	same day          -> already claimed
//	exactly next day  -> claimable, day+1 (CycleDays wraps to 1)
//	gap of 2+ days    -> streak broken, claimable, day 1
//	date in the past  -> clock skew, nothing due
func Evaluate(record model.LoginRewardRecord, today string) (nextDay int, claimable bool) {
	if record.LastClaimDate == nil || *record.LastClaimDate == "" {
		day := record.CurrentDay
		if day < 1 || day > CycleDays {
			day = 1
		}
		return day, true
	}

	gap, err := dayGap(*record.LastClaimDate, today)
	if err != nil {
		// Unparseable stored date: treat as no prior claim.
		return 1, true
	}

	switch {
	case gap == 0:
		return record.CurrentDay, false
	case gap == 1:
		day := record.CurrentDay + 1
		if day > CycleDays {
			day = 1
		}
		return day, true
	case gap > 1:
		return 1, true
	default: // gap < 0
		return record.CurrentDay, false
	}
}

// dayGap returns the whole calendar-day difference to - from.
func dayGap(from, to string) (int, error) {
	a, err := time.Parse(dateLayout, from)
	if err != nil {
		return 0, err
	}
	b, err := time.Parse(dateLayout, to)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}

// Service is the login reward engine: a 30-day wrapping streak with one
// claim per calendar day.
type Service struct {
	db      *gorm.DB
	catalog *catalog.Service
	economy *economy.Service
	stats   *stats.Service
	notify  *notify.Center
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a login reward Service.
func NewService(
	db *gorm.DB,
	cat *catalog.Service,
	eco *economy.Service,
	st *stats.Service,
	nc *notify.Center,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:      db,
		catalog: cat,
		economy: eco,
		stats:   st,
		notify:  nc,
		logger:  logger,
		now:     time.Now,
	}
}

// Hydrate returns the owner's streak record, today's claim decision and the
// full 30-day reward table for display.
func (svc *Service) Hydrate(ctx context.Context, owner model.Owner) (*Status, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}
	record, err := svc.getOrCreate(svc.db.WithContext(ctx), owner)
	if err != nil {
		return nil, err
	}
	templates, err := svc.catalog.LoginRewardTemplates(ctx)
	if err != nil {
		return nil, err
	}
	nextDay, claimable := Evaluate(*record, svc.today())
	return &Status{
		Record:    *record,
		NextDay:   nextDay,
		Claimable: claimable,
		Templates: templates,
	}, nil
}

// Claim grants today's login reward. Returns ErrNotEligible when nothing is
// due (already claimed today, or clock skew) and ErrNotReady when the
// reward table has no row for the cycle day.
func (svc *Service) Claim(ctx context.Context, owner model.Owner) (*ClaimResult, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}
	today := svc.today()

	var result ClaimResult
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := svc.getOrCreate(tx, owner)
		if err != nil {
			return err
		}
		nextDay, claimable := Evaluate(*record, today)
		if !claimable {
			return reward.ErrNotEligible
		}

		tpl, err := svc.catalog.LoginRewardForDay(ctx, nextDay)
		if err != nil {
			return err
		}
		if tpl == nil {
			return reward.ErrNotReady
		}

		// The date guard makes a concurrent same-day double claim lose:
		// the second writer matches zero rows and rolls back.
		res := tx.Model(&model.LoginRewardRecord{}).
			Where("id = ? AND (last_claim_date IS NULL OR last_claim_date <> ?)", record.ID, today).
			Updates(map[string]interface{}{
				"current_day":        nextDay,
				"last_claim_date":    today,
				"total_days_claimed": gorm.Expr("total_days_claimed + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("loginreward: stamp: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return reward.ErrNotEligible
		}

		if err := svc.economy.CreditTx(tx, owner, int64(tpl.RewardVCoin), int64(tpl.RewardRuby)); err != nil {
			return err
		}
		if tpl.RewardEnergy > 0 {
			if err := svc.stats.AddEnergyTx(tx, owner, tpl.RewardEnergy); err != nil {
				return err
			}
		}

		result = ClaimResult{
			Day:    nextDay,
			Reward: reward.Reward{VCoin: tpl.RewardVCoin, Ruby: tpl.RewardRuby},
			Energy: tpl.RewardEnergy,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Streak counter shown on the profile tracks the cycle day.
	if err := svc.stats.SetLoginStreak(ctx, owner, result.Day); err != nil {
		svc.logger.Warn("login streak update failed",
			zap.String("owner", owner.Key()), zap.Error(err))
	}

	svc.notify.Push(owner, &notify.Notification{
		Kind:   notify.KindLoginReward,
		Title:  fmt.Sprintf("day %d", result.Day),
		Amount: result.Reward.VCoin,
	})
	svc.logger.Info("login reward claimed",
		zap.String("owner", owner.Key()),
		zap.Int("day", result.Day))
	return &result, nil
}

func (svc *Service) today() string {
	return svc.now().Format(dateLayout)
}

func (svc *Service) getOrCreate(tx *gorm.DB, owner model.Owner) (*model.LoginRewardRecord, error) {
	var record model.LoginRewardRecord
	err := owner.Scope(tx).First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("loginreward: lookup: %w", err)
	}
	record = model.LoginRewardRecord{
		OwnerKey: owner.Key(),
		UserID:   owner.UserID,
		ClientID: owner.ClientID,
	}
	if err := tx.Create(&record).Error; err != nil {
		// Lost a concurrent create on the unique owner key; the winner's
		// row is the record.
		if ferr := owner.Scope(tx).First(&record).Error; ferr != nil {
			return nil, fmt.Errorf("loginreward: create: %w", err)
		}
	}
	return &record, nil
}
