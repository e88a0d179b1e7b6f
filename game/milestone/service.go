package milestone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuonghoang741/vivivi-server/game/economy"
	"github.com/cuonghoang741/vivivi-server/game/notify"
	"github.com/cuonghoang741/vivivi-server/game/reward"
	"github.com/cuonghoang741/vivivi-server/game/stats"
	"github.com/cuonghoang741/vivivi-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Thresholds are the relationship levels that carry a one-time reward, in
// ascending order.
var Thresholds = []int{10, 25, 40, 50, 60, 75, 90, 100}

// rewards is the static per-threshold reward table; grants grow
// monotonically with the threshold.
var rewards = map[int]reward.Reward{
	10:  {VCoin: 100, XP: 50},
	25:  {VCoin: 250, XP: 100},
	40:  {VCoin: 400, Ruby: 1, XP: 150},
	50:  {VCoin: 500, Ruby: 2, XP: 200},
	60:  {VCoin: 600, Ruby: 3, XP: 250},
	75:  {VCoin: 750, Ruby: 5, XP: 300},
	90:  {VCoin: 900, Ruby: 8, XP: 400},
	100: {VCoin: 1500, Ruby: 15, XP: 500},
}

// IsThreshold reports whether level is a milestone threshold.
func IsThreshold(level int) bool {
	_, ok := rewards[level]
	return ok
}

// RewardFor returns the reward attached to a threshold; zero for
// non-thresholds.
func RewardFor(milestone int) reward.Reward {
	return rewards[milestone]
}

// CanClaim reports whether an owner at relationshipLevel may claim the
// milestone. Reaching the threshold is the only gate; claim history is
// checked at the store.
func CanClaim(relationshipLevel, milestone int) bool {
	return IsThreshold(milestone) && relationshipLevel >= milestone
}

// View is one milestone row for the client: the threshold, its reward and
// the owner's claim state at the supplied relationship level.
type View struct {
	Milestone int           `json:"milestone"`
	Reward    reward.Reward `json:"reward"`
	Reached   bool          `json:"reached"`
	Claimed   bool          `json:"claimed"`
}

// ClaimResult reports what a successful milestone claim granted.
type ClaimResult struct {
	Milestone int           `json:"milestone"`
	Reward    reward.Reward `json:"reward"`
	NewLevel  int           `json:"new_level"`
	LeveledUp bool          `json:"leveled_up"`
}

// Service is the relationship milestone engine. The relationship level
// itself lives with the companion state upstream; callers pass the current
// level and this service guards the one-time claims.
type Service struct {
	db      *gorm.DB
	economy *economy.Service
	stats   *stats.Service
	notify  *notify.Center
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a milestone Service.
func NewService(db *gorm.DB, eco *economy.Service, st *stats.Service, nc *notify.Center, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		economy: eco,
		stats:   st,
		notify:  nc,
		logger:  logger,
		now:     time.Now,
	}
}

// Status returns every threshold for the character with reached/claimed
// state at the supplied relationship level.
func (svc *Service) Status(ctx context.Context, owner model.Owner, character string, relationshipLevel int) ([]View, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}
	var claims []model.MilestoneClaim
	if err := owner.Scope(svc.db.WithContext(ctx)).
		Where("character = ? AND claimed = ?", character, true).
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("milestone: status: %w", err)
	}
	claimed := make(map[int]bool, len(claims))
	for _, c := range claims {
		claimed[c.Milestone] = true
	}

	views := make([]View, 0, len(Thresholds))
	for _, m := range Thresholds {
		views = append(views, View{
			Milestone: m,
			Reward:    rewards[m],
			Reached:   relationshipLevel >= m,
			Claimed:   claimed[m],
		})
	}
	return views, nil
}

// Claim grants the milestone reward exactly once per (owner, character,
// threshold). The unique index on the claim row and the conditional flip
// together make a concurrent double claim resolve to one credit.
func (svc *Service) Claim(ctx context.Context, owner model.Owner, character string, milestone, relationshipLevel int) (*ClaimResult, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}
	if !IsThreshold(milestone) {
		return nil, reward.ErrNotFound
	}
	if !CanClaim(relationshipLevel, milestone) {
		return nil, reward.ErrNotEligible
	}

	grant := rewards[milestone]
	var result ClaimResult
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.MilestoneClaim
		err := owner.Scope(tx).
			Where("character = ? AND milestone = ?", character, milestone).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.Claimed {
				return reward.ErrAlreadyClaimed
			}
			res := tx.Model(&model.MilestoneClaim{}).
				Where("id = ? AND claimed = ?", existing.ID, false).
				Updates(map[string]interface{}{"claimed": true, "claimed_at": svc.now()})
			if res.Error != nil {
				return fmt.Errorf("milestone: mark claimed: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return reward.ErrAlreadyClaimed
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := svc.now()
			claim := model.MilestoneClaim{
				OwnerKey:  owner.Key(),
				UserID:    owner.UserID,
				ClientID:  owner.ClientID,
				Character: character,
				Milestone: milestone,
				Claimed:   true,
				ClaimedAt: &now,
			}
			// The unique (owner_key, character, milestone) index rejects a
			// concurrent duplicate insert and the losing transaction rolls
			// its credits back.
			if err := tx.Create(&claim).Error; err != nil {
				return reward.ErrAlreadyClaimed
			}
		default:
			return fmt.Errorf("milestone: lookup: %w", err)
		}

		if err := svc.economy.CreditTx(tx, owner, int64(grant.VCoin), int64(grant.Ruby)); err != nil {
			return err
		}
		newLevel, leveledUp, err := svc.stats.AddXPTx(tx, owner, grant.XP)
		if err != nil {
			return err
		}
		result = ClaimResult{
			Milestone: milestone,
			Reward:    grant,
			NewLevel:  newLevel,
			LeveledUp: leveledUp,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.notify.Push(owner, &notify.Notification{
		Kind:   notify.KindMilestone,
		Title:  character,
		Amount: milestone,
	})
	if result.LeveledUp {
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindLevelUp, Title: "level up", Amount: result.NewLevel,
		})
	}
	svc.logger.Info("milestone claimed",
		zap.String("owner", owner.Key()),
		zap.String("character", character),
		zap.Int("milestone", milestone))
	return &result, nil
}
