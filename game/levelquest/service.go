package levelquest

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

// QuestView joins a level quest instance with its template.
type QuestView struct {
	Instance model.LevelQuestInstance `json:"instance"`
	Template model.LevelQuestTemplate `json:"template"`
}

// ClaimResult reports what a successful claim granted.
type ClaimResult struct {
	Reward    reward.Reward `json:"reward"`
	NewLevel  int           `json:"new_level"`
	LeveledUp bool          `json:"leveled_up"`
}

// Service is the level quest engine. Level quests unlock permanently when
// the owner's level reaches the template requirement and never expire.
type Service struct {
	db      *gorm.DB
	catalog *catalog.Service
	economy *economy.Service
	stats   *stats.Service
	notify  *notify.Center
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a level quest Service.
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

// Load syncs unlocks against the owner's current level and returns every
// unlocked instance: highest requirement first, incomplete before completed,
// then by descending progress.
func (svc *Service) Load(ctx context.Context, owner model.Owner) ([]QuestView, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}
	st, err := svc.stats.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := svc.OnLevelUp(ctx, owner, st.Level); err != nil {
		return nil, err
	}

	var instances []model.LevelQuestInstance
	if err := owner.Scope(svc.db.WithContext(ctx)).Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("levelquest: load: %w", err)
	}
	return svc.views(ctx, instances)
}

// OnLevelUp unlocks every active template with level_required <= level that
// the owner has no instance for yet. Idempotent, and skipped levels are
// backfilled: jumping 3 -> 5 unlocks the level-4 quests too.
func (svc *Service) OnLevelUp(ctx context.Context, owner model.Owner, level int) error {
	if !owner.Valid() {
		return reward.ErrUnauthenticated
	}
	templates, err := svc.catalog.LevelTemplatesUpTo(ctx, level)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		return nil
	}

	var existing []int64
	if err := owner.Scope(svc.db.WithContext(ctx).Model(&model.LevelQuestInstance{})).
		Pluck("template_id", &existing).Error; err != nil {
		return fmt.Errorf("levelquest: existing: %w", err)
	}
	existingSet := make(map[int64]bool, len(existing))
	for _, id := range existing {
		existingSet[id] = true
	}

	for _, tpl := range templates {
		if existingSet[tpl.ID] {
			continue
		}
		inst := model.LevelQuestInstance{
			OwnerKey:   owner.Key(),
			UserID:     owner.UserID,
			ClientID:   owner.ClientID,
			TemplateID: tpl.ID,
		}
		// A concurrent unlock of the same template loses on the unique
		// (owner, template) index and is skipped.
		if err := svc.db.WithContext(ctx).Create(&inst).Error; err != nil {
			svc.logger.Warn("level quest unlock failed",
				zap.String("owner", owner.Key()),
				zap.Int64("template_id", tpl.ID),
				zap.Error(err))
			continue
		}
		svc.logger.Info("level quest unlocked",
			zap.String("owner", owner.Key()),
			zap.Int64("template_id", tpl.ID),
			zap.Int("level_required", tpl.LevelRequired))
	}
	return nil
}

// TrackProgress adds increment to every unlocked incomplete instance whose
// template quest type matches, clamped at the target.
func (svc *Service) TrackProgress(ctx context.Context, owner model.Owner, questType string, increment int) error {
	if !owner.Valid() {
		return reward.ErrUnauthenticated
	}
	if increment <= 0 {
		return nil
	}

	var instances []model.LevelQuestInstance
	if err := owner.Scope(svc.db.WithContext(ctx)).
		Where("completed = ? AND claimed = ?", false, false).
		Find(&instances).Error; err != nil {
		return fmt.Errorf("levelquest: track: %w", err)
	}
	if len(instances) == 0 {
		return nil
	}

	templates, err := svc.templateMap(ctx, instances)
	if err != nil {
		return err
	}

	for i := range instances {
		inst := &instances[i]
		tpl, ok := templates[inst.TemplateID]
		if !ok || tpl.QuestType != questType {
			continue
		}

		progress := inst.Progress + increment
		if progress > tpl.Target {
			progress = tpl.Target
		}
		completed := progress >= tpl.Target
		updates := map[string]interface{}{"progress": progress}
		if completed {
			now := svc.now()
			updates["completed"] = true
			updates["completed_at"] = &now
		}
		if err := svc.db.WithContext(ctx).Model(&model.LevelQuestInstance{}).
			Where("id = ?", inst.ID).
			Updates(updates).Error; err != nil {
			svc.logger.Warn("level quest progress update failed",
				zap.Int64("instance_id", inst.ID), zap.Error(err))
			continue
		}

		svc.notify.Push(owner, &notify.Notification{
			Kind:     notify.KindQuestProgress,
			Title:    tpl.Title,
			Progress: progress,
			Target:   tpl.Target,
		})
		if completed {
			svc.notify.Push(owner, &notify.Notification{
				Kind:  notify.KindQuestComplete,
				Title: tpl.Title,
			})
		}
	}
	return nil
}

// Claim settles a completed instance exactly once, crediting currency and
// XP in the same transaction as the claimed flip.
func (svc *Service) Claim(ctx context.Context, owner model.Owner, questID int64) (*ClaimResult, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}

	var result ClaimResult
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inst model.LevelQuestInstance
		err := owner.Scope(tx).Where("id = ?", questID).First(&inst).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reward.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("levelquest: claim lookup: %w", err)
		}
		if !inst.Completed {
			return reward.ErrNotCompleted
		}
		if inst.Claimed {
			return reward.ErrAlreadyClaimed
		}

		var tpl model.LevelQuestTemplate
		if err := tx.First(&tpl, inst.TemplateID).Error; err != nil {
			return fmt.Errorf("levelquest: claim template: %w", err)
		}

		now := svc.now()
		res := owner.Scope(tx.Model(&model.LevelQuestInstance{})).
			Where("id = ? AND claimed = ?", inst.ID, false).
			Updates(map[string]interface{}{"claimed": true, "claimed_at": &now})
		if res.Error != nil {
			return fmt.Errorf("levelquest: mark claimed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return reward.ErrAlreadyClaimed
		}

		if err := svc.economy.CreditTx(tx, owner, int64(tpl.RewardVCoin), int64(tpl.RewardRuby)); err != nil {
			return err
		}
		newLevel, leveledUp, err := svc.stats.AddXPTx(tx, owner, tpl.RewardXP)
		if err != nil {
			return err
		}

		result = ClaimResult{
			Reward:    reward.Reward{VCoin: tpl.RewardVCoin, Ruby: tpl.RewardRuby, XP: tpl.RewardXP},
			NewLevel:  newLevel,
			LeveledUp: leveledUp,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A claim that raises the level can unlock the next tier immediately.
	if result.LeveledUp {
		if err := svc.OnLevelUp(ctx, owner, result.NewLevel); err != nil {
			svc.logger.Warn("post-claim unlock failed",
				zap.String("owner", owner.Key()), zap.Error(err))
		}
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindLevelUp, Title: "level up", Amount: result.NewLevel,
		})
		// Announce the quests the new level just made available.
		if unlocked, err := svc.catalog.LevelTemplatesAt(ctx, result.NewLevel); err == nil {
			for _, tpl := range unlocked {
				svc.notify.Push(owner, &notify.Notification{
					Kind: notify.KindQuestUnlocked, Title: tpl.Title,
				})
			}
		}
	}
	if result.Reward.VCoin > 0 {
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindCurrency, Title: "vcoin", Amount: result.Reward.VCoin,
		})
	}
	if result.Reward.Ruby > 0 {
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindCurrency, Title: "ruby", Amount: result.Reward.Ruby,
		})
	}
	if result.Reward.XP > 0 {
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindXP, Title: "xp", Amount: result.Reward.XP,
		})
	}
	return &result, nil
}

func (svc *Service) templateMap(ctx context.Context, instances []model.LevelQuestInstance) (map[int64]model.LevelQuestTemplate, error) {
	ids := make([]int64, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.TemplateID)
	}
	return svc.catalog.LevelTemplatesByID(ctx, ids)
}

func (svc *Service) views(ctx context.Context, instances []model.LevelQuestInstance) ([]QuestView, error) {
	templates, err := svc.templateMap(ctx, instances)
	if err != nil {
		return nil, err
	}
	views := make([]QuestView, 0, len(instances))
	for _, inst := range instances {
		tpl, ok := templates[inst.TemplateID]
		if !ok {
			svc.logger.Warn("level quest instance without template",
				zap.Int64("instance_id", inst.ID),
				zap.Int64("template_id", inst.TemplateID))
			continue
		}
		views = append(views, QuestView{Instance: inst, Template: tpl})
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Template.LevelRequired != b.Template.LevelRequired {
			return a.Template.LevelRequired > b.Template.LevelRequired
		}
		if a.Instance.Completed != b.Instance.Completed {
			return !a.Instance.Completed
		}
		return a.Instance.Progress > b.Instance.Progress
	})
	return views, nil
}
