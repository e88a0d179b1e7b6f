package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuonghoang741/vivivi-server/model"
	"gorm.io/gorm"
)

// Service provides read-only access to quest templates and reward tables.
// Templates are maintained by the content pipeline; the engines never
// mutate them.
type Service struct {
	db *gorm.DB
}

// NewService creates a catalog Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ActiveDailyTemplates returns the active daily template pool grouped by
// difficulty.
func (svc *Service) ActiveDailyTemplates(ctx context.Context) (map[string][]model.DailyQuestTemplate, error) {
	var templates []model.DailyQuestTemplate
	if err := svc.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("catalog: daily templates: %w", err)
	}
	pool := make(map[string][]model.DailyQuestTemplate)
	for _, tpl := range templates {
		pool[tpl.Difficulty] = append(pool[tpl.Difficulty], tpl)
	}
	return pool, nil
}

// DailyTemplatesByID returns the daily templates for the given ids.
func (svc *Service) DailyTemplatesByID(ctx context.Context, ids []int64) (map[int64]model.DailyQuestTemplate, error) {
	if len(ids) == 0 {
		return map[int64]model.DailyQuestTemplate{}, nil
	}
	var templates []model.DailyQuestTemplate
	if err := svc.db.WithContext(ctx).Where("id IN ?", ids).Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("catalog: daily templates by id: %w", err)
	}
	out := make(map[int64]model.DailyQuestTemplate, len(templates))
	for _, tpl := range templates {
		out[tpl.ID] = tpl
	}
	return out, nil
}

// LevelTemplatesUpTo returns active level templates with
// level_required <= level.
func (svc *Service) LevelTemplatesUpTo(ctx context.Context, level int) ([]model.LevelQuestTemplate, error) {
	var templates []model.LevelQuestTemplate
	if err := svc.db.WithContext(ctx).
		Where("active = ? AND level_required <= ?", true, level).
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("catalog: level templates: %w", err)
	}
	return templates, nil
}

// LevelTemplatesAt returns active level templates with
// level_required = level.
func (svc *Service) LevelTemplatesAt(ctx context.Context, level int) ([]model.LevelQuestTemplate, error) {
	var templates []model.LevelQuestTemplate
	if err := svc.db.WithContext(ctx).
		Where("active = ? AND level_required = ?", true, level).
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("catalog: level templates at %d: %w", level, err)
	}
	return templates, nil
}

// LevelTemplatesByID returns the level templates for the given ids.
func (svc *Service) LevelTemplatesByID(ctx context.Context, ids []int64) (map[int64]model.LevelQuestTemplate, error) {
	if len(ids) == 0 {
		return map[int64]model.LevelQuestTemplate{}, nil
	}
	var templates []model.LevelQuestTemplate
	if err := svc.db.WithContext(ctx).Where("id IN ?", ids).Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("catalog: level templates by id: %w", err)
	}
	out := make(map[int64]model.LevelQuestTemplate, len(templates))
	for _, tpl := range templates {
		out[tpl.ID] = tpl
	}
	return out, nil
}

// LoginRewardTemplates returns the 30-day login reward table ordered by day.
func (svc *Service) LoginRewardTemplates(ctx context.Context) ([]model.LoginRewardTemplate, error) {
	var templates []model.LoginRewardTemplate
	if err := svc.db.WithContext(ctx).Order("day ASC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("catalog: login reward templates: %w", err)
	}
	return templates, nil
}

// LoginRewardForDay returns the template for a specific cycle day, or nil
// if the content pipeline has not provisioned it.
func (svc *Service) LoginRewardForDay(ctx context.Context, day int) (*model.LoginRewardTemplate, error) {
	var tpl model.LoginRewardTemplate
	err := svc.db.WithContext(ctx).Where("day = ?", day).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: login reward day %d: %w", day, err)
	}
	return &tpl, nil
}
