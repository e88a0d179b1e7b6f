package daily

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
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

// DateKey formats a calendar date the way daily instances are keyed.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// QuestView joins an instance with its template for the client.
type QuestView struct {
	Instance model.DailyQuestInstance `json:"instance"`
	Template model.DailyQuestTemplate `json:"template"`
}

// ClaimResult reports what a successful claim granted.
type ClaimResult struct {
	Reward    reward.Reward `json:"reward"`
	NewLevel  int           `json:"new_level"`
	LeveledUp bool          `json:"leveled_up"`
}

// Config controls how many templates of each difficulty a generation run
// draws.
type Config struct {
	EasyCount   int
	MediumCount int
	HardCount   int
}

func (c Config) withDefaults() Config {
	if c.EasyCount <= 0 && c.MediumCount <= 0 && c.HardCount <= 0 {
		c.EasyCount, c.MediumCount, c.HardCount = 3, 2, 1
	}
	return c
}

// Service is the daily quest engine: generates the per-day instance set,
// tracks progress events and settles claims.
type Service struct {
	db      *gorm.DB
	catalog *catalog.Service
	economy *economy.Service
	stats   *stats.Service
	notify  *notify.Center
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a daily quest Service.
func NewService(
	db *gorm.DB,
	cat *catalog.Service,
	eco *economy.Service,
	st *stats.Service,
	nc *notify.Center,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:      db,
		catalog: cat,
		economy: eco,
		stats:   st,
		notify:  nc,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// LoadToday returns the owner's instance set for today, generating one if
// none exists yet.
func (svc *Service) LoadToday(ctx context.Context, owner model.Owner) ([]QuestView, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}
	today := DateKey(svc.now())

	var instances []model.DailyQuestInstance
	if err := owner.Scope(svc.db.WithContext(ctx)).
		Where("quest_date = ?", today).
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("daily: load today: %w", err)
	}
	if len(instances) == 0 {
		return svc.Generate(ctx, owner)
	}
	return svc.views(ctx, instances)
}

// Generate archives any still-open instances for today and draws a fresh
// set from the active template pool: up to EasyCount easy + MediumCount
// medium + HardCount hard, fewer if the pool is short. An empty pool yields
// zero quests, not an error.
func (svc *Service) Generate(ctx context.Context, owner model.Owner) ([]QuestView, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}
	today := DateKey(svc.now())

	// Force-close anything still open for today so at most one open set
	// exists per owner per day, even if generation races a stale day key.
	if err := owner.Scope(svc.db.WithContext(ctx).Model(&model.DailyQuestInstance{})).
		Where("quest_date = ? AND claimed = ?", today, false).
		Updates(map[string]interface{}{"completed": true, "claimed": true}).Error; err != nil {
		return nil, fmt.Errorf("daily: archive: %w", err)
	}

	// Templates already instantiated today (now archived) are excluded from
	// the draw; (owner, template, date) stays unique.
	var used []int64
	if err := owner.Scope(svc.db.WithContext(ctx).Model(&model.DailyQuestInstance{})).
		Where("quest_date = ?", today).
		Pluck("template_id", &used).Error; err != nil {
		return nil, fmt.Errorf("daily: used templates: %w", err)
	}
	usedSet := make(map[int64]bool, len(used))
	for _, id := range used {
		usedSet[id] = true
	}

	pool, err := svc.catalog.ActiveDailyTemplates(ctx)
	if err != nil {
		return nil, err
	}

	selected := make([]model.DailyQuestTemplate, 0, svc.cfg.EasyCount+svc.cfg.MediumCount+svc.cfg.HardCount)
	selected = append(selected, draw(pool[model.DifficultyEasy], svc.cfg.EasyCount, usedSet)...)
	selected = append(selected, draw(pool[model.DifficultyMedium], svc.cfg.MediumCount, usedSet)...)
	selected = append(selected, draw(pool[model.DifficultyHard], svc.cfg.HardCount, usedSet)...)

	instances := make([]model.DailyQuestInstance, 0, len(selected))
	for _, tpl := range selected {
		inst := model.DailyQuestInstance{
			OwnerKey:   owner.Key(),
			UserID:     owner.UserID,
			ClientID:   owner.ClientID,
			TemplateID: tpl.ID,
			QuestDate:  today,
		}
		if err := svc.db.WithContext(ctx).Create(&inst).Error; err != nil {
			// Skip-and-continue: a concurrent generation already holding the
			// (owner, template, date) slot must not abort the batch.
			svc.logger.Warn("daily instance create failed",
				zap.String("owner", owner.Key()),
				zap.Int64("template_id", tpl.ID),
				zap.Error(err))
			continue
		}
		instances = append(instances, inst)
	}

	svc.logger.Info("daily quests generated",
		zap.String("owner", owner.Key()),
		zap.String("date", today),
		zap.Int("count", len(instances)))
	return svc.views(ctx, instances)
}

// draw shuffles a difficulty pool and takes up to n templates not in skip.
func draw(pool []model.DailyQuestTemplate, n int, skip map[int64]bool) []model.DailyQuestTemplate {
	shuffled := make([]model.DailyQuestTemplate, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	out := make([]model.DailyQuestTemplate, 0, n)
	for _, tpl := range shuffled {
		if len(out) == n {
			break
		}
		if skip[tpl.ID] {
			continue
		}
		out = append(out, tpl)
	}
	return out
}

// TrackProgress adds increment to every incomplete instance for today whose
// template quest type matches. Progress is clamped at the target; reaching
// it flips completed once and stamps completed_at. No matching instance is
// a no-op, not an error.
func (svc *Service) TrackProgress(ctx context.Context, owner model.Owner, questType string, increment int) error {
	if !owner.Valid() {
		return reward.ErrUnauthenticated
	}
	if increment <= 0 {
		return nil // progress never decreases
	}
	today := DateKey(svc.now())

	var instances []model.DailyQuestInstance
	if err := owner.Scope(svc.db.WithContext(ctx)).
		Where("quest_date = ? AND completed = ? AND claimed = ?", today, false, false).
		Find(&instances).Error; err != nil {
		return fmt.Errorf("daily: track: %w", err)
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
		if err := svc.db.WithContext(ctx).Model(&model.DailyQuestInstance{}).
			Where("id = ?", inst.ID).
			Updates(updates).Error; err != nil {
			svc.logger.Warn("daily progress update failed",
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

// Claim settles a completed instance: credits currency and XP and marks it
// claimed in one transaction. The conditional claimed flip makes a
// concurrent double claim resolve to exactly one credit.
func (svc *Service) Claim(ctx context.Context, owner model.Owner, questID int64) (*ClaimResult, error) {
	if !owner.Valid() {
		return nil, reward.ErrUnauthenticated
	}
	today := DateKey(svc.now())

	var result ClaimResult
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inst model.DailyQuestInstance
		err := owner.Scope(tx).
			Where("id = ? AND quest_date = ?", questID, today).
			First(&inst).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reward.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("daily: claim lookup: %w", err)
		}
		if !inst.Completed {
			return reward.ErrNotCompleted
		}
		if inst.Claimed {
			return reward.ErrAlreadyClaimed
		}

		var tpl model.DailyQuestTemplate
		if err := tx.First(&tpl, inst.TemplateID).Error; err != nil {
			return fmt.Errorf("daily: claim template: %w", err)
		}

		// Re-check claimed at the write: a concurrent winner leaves zero
		// rows affected and this transaction rolls its credits back.
		res := owner.Scope(tx.Model(&model.DailyQuestInstance{})).
			Where("id = ? AND claimed = ?", inst.ID, false).
			Update("claimed", true)
		if res.Error != nil {
			return fmt.Errorf("daily: mark claimed: %w", res.Error)
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

	svc.announceClaim(owner, result)
	return &result, nil
}

func (svc *Service) announceClaim(owner model.Owner, res ClaimResult) {
	if res.Reward.VCoin > 0 {
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindCurrency, Title: "vcoin", Amount: res.Reward.VCoin,
		})
	}
	if res.Reward.Ruby > 0 {
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindCurrency, Title: "ruby", Amount: res.Reward.Ruby,
		})
	}
	if res.Reward.XP > 0 {
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindXP, Title: "xp", Amount: res.Reward.XP,
		})
	}
	if res.LeveledUp {
		svc.notify.Push(owner, &notify.Notification{
			Kind: notify.KindLevelUp, Title: "level up", Amount: res.NewLevel,
		})
	}
}

// ArchiveStale force-closes open instances from past dates. Runs on a
// scheduler ticker; daily instances are archived in place, never deleted.
func (svc *Service) ArchiveStale(ctx context.Context) error {
	today := DateKey(svc.now())
	res := svc.db.WithContext(ctx).Model(&model.DailyQuestInstance{}).
		Where("quest_date < ? AND claimed = ?", today, false).
		Updates(map[string]interface{}{"completed": true, "claimed": true})
	if res.Error != nil {
		return fmt.Errorf("daily: archive stale: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("stale daily quests archived", zap.Int64("count", res.RowsAffected))
	}
	return nil
}

func (svc *Service) templateMap(ctx context.Context, instances []model.DailyQuestInstance) (map[int64]model.DailyQuestTemplate, error) {
	ids := make([]int64, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.TemplateID)
	}
	return svc.catalog.DailyTemplatesByID(ctx, ids)
}

// views joins instances with templates and sorts easy < medium < hard,
// ties broken by ascending reward XP.
func (svc *Service) views(ctx context.Context, instances []model.DailyQuestInstance) ([]QuestView, error) {
	templates, err := svc.templateMap(ctx, instances)
	if err != nil {
		return nil, err
	}
	views := make([]QuestView, 0, len(instances))
	for _, inst := range instances {
		tpl, ok := templates[inst.TemplateID]
		if !ok {
			svc.logger.Warn("daily instance without template",
				zap.Int64("instance_id", inst.ID),
				zap.Int64("template_id", inst.TemplateID))
			continue
		}
		views = append(views, QuestView{Instance: inst, Template: tpl})
	}
	sort.SliceStable(views, func(i, j int) bool {
		ri, rj := model.DifficultyRank(views[i].Template.Difficulty), model.DifficultyRank(views[j].Template.Difficulty)
		if ri != rj {
			return ri < rj
		}
		return views[i].Template.RewardXP < views[j].Template.RewardXP
	})
	return views, nil
}
