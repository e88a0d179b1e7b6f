package catalog

import (
	"context"
	"testing"

	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/cuonghoang741/vivivi-server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewService(db), db
}

func boolPtr(b bool) *bool { return &b }

func TestActiveDailyTemplatesGroupsAndFilters(t *testing.T) {
	svc, db := newTestService(t)
	for _, tpl := range []model.DailyQuestTemplate{
		{Title: "a", QuestType: "t", Difficulty: model.DifficultyEasy, Target: 1},
		{Title: "b", QuestType: "t", Difficulty: model.DifficultyEasy, Target: 1},
		{Title: "c", QuestType: "t", Difficulty: model.DifficultyHard, Target: 1},
		{Title: "d", QuestType: "t", Difficulty: model.DifficultyMedium, Target: 1, Active: boolPtr(false)},
	} {
		require.NoError(t, db.Create(&tpl).Error)
	}

	// The deactivated row must survive the insert as-is.
	var inactive model.DailyQuestTemplate
	require.NoError(t, db.Where("title = ?", "d").First(&inactive).Error)
	require.NotNil(t, inactive.Active)
	assert.False(t, *inactive.Active)

	pool, err := svc.ActiveDailyTemplates(context.Background())
	require.NoError(t, err)
	assert.Len(t, pool[model.DifficultyEasy], 2)
	assert.Len(t, pool[model.DifficultyHard], 1)
	assert.Empty(t, pool[model.DifficultyMedium], "inactive templates are excluded")
}

func TestLevelTemplatesUpToAndAt(t *testing.T) {
	svc, db := newTestService(t)
	for _, level := range []int{1, 2, 3, 5} {
		tpl := model.LevelQuestTemplate{
			Title: "q", QuestType: "t", LevelRequired: level, Target: 1,
		}
		require.NoError(t, db.Create(&tpl).Error)
	}
	inactive := model.LevelQuestTemplate{
		Title: "off", QuestType: "t", LevelRequired: 1, Target: 1, Active: boolPtr(false),
	}
	require.NoError(t, db.Create(&inactive).Error)

	upTo, err := svc.LevelTemplatesUpTo(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, upTo, 3)

	at, err := svc.LevelTemplatesAt(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, at, 1)
	assert.Equal(t, 5, at[0].LevelRequired)
}

func TestLoginRewardTemplatesOrderedByDay(t *testing.T) {
	svc, db := newTestService(t)
	for _, day := range []int{3, 1, 2} {
		require.NoError(t, db.Create(&model.LoginRewardTemplate{Day: day, RewardVCoin: day}).Error)
	}

	templates, err := svc.LoginRewardTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 3)
	for i, tpl := range templates {
		assert.Equal(t, i+1, tpl.Day)
	}
}

func TestLoginRewardForDay(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&model.LoginRewardTemplate{Day: 7, RewardVCoin: 70}).Error)

	tpl, err := svc.LoginRewardForDay(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, 70, tpl.RewardVCoin)

	tpl, err = svc.LoginRewardForDay(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, tpl, "unprovisioned day is nil, not an error")
}

func TestTemplatesByIDEmptyInput(t *testing.T) {
	svc, _ := newTestService(t)
	daily, err := svc.DailyTemplatesByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, daily)

	level, err := svc.LevelTemplatesByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, level)
}
