package model

import "time"

// Daily quest difficulties.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// DifficultyRank orders difficulties easy < medium < hard for sorting.
func DifficultyRank(d string) int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	}
	return 3
}

// DailyQuestTemplate is an immutable daily quest definition maintained by
// the content pipeline. QuestType is matched against progress event types.
type DailyQuestTemplate struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"size:128;not null" json:"title"`
	QuestType   string    `gorm:"size:64;index;not null" json:"quest_type"`
	Difficulty  string    `gorm:"size:16;index;not null" json:"difficulty"` // easy | medium | hard
	Target      int       `gorm:"not null" json:"target"`
	RewardVCoin int       `gorm:"column:reward_vcoin;default:0" json:"reward_vcoin"`
	RewardRuby  int       `gorm:"default:0" json:"reward_ruby"`
	RewardXP    int       `gorm:"column:reward_xp;default:0" json:"reward_xp"`
	// Pointer so an explicit false survives the insert; a plain bool with a
	// true default is silently dropped as a zero value.
	Active    *bool     `gorm:"default:true;index" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DailyQuestInstance binds a daily template to one owner for one calendar
// date. Progress only grows, capped at the template target. Archived
// instances are force-marked completed+claimed, never deleted.
type DailyQuestInstance struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	// OwnerKey denormalizes Owner.Key(); the nullable id columns cannot
	// carry a unique index (NULLs never collide).
	OwnerKey    string     `gorm:"size:40;uniqueIndex:uniq_daily_set;not null" json:"-"`
	UserID      *int64     `gorm:"index:idx_daily_owner_date" json:"user_id,omitempty"`
	ClientID    *string    `gorm:"size:36;index:idx_daily_owner_date" json:"client_id,omitempty"`
	TemplateID  int64      `gorm:"index;uniqueIndex:uniq_daily_set;not null" json:"template_id"`
	QuestDate   string     `gorm:"size:10;index:idx_daily_owner_date;uniqueIndex:uniq_daily_set;not null" json:"quest_date"` // YYYY-MM-DD
	Progress    int        `gorm:"default:0" json:"progress"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	Claimed     bool       `gorm:"default:false" json:"claimed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// LevelQuestTemplate is an immutable level-gated quest definition. The
// instance unlocks once the owner's level reaches LevelRequired.
type LevelQuestTemplate struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string    `gorm:"size:128;not null" json:"title"`
	QuestType     string    `gorm:"size:64;index;not null" json:"quest_type"`
	LevelRequired int       `gorm:"index;not null" json:"level_required"`
	Target        int       `gorm:"not null" json:"target"`
	RewardVCoin   int       `gorm:"column:reward_vcoin;default:0" json:"reward_vcoin"`
	RewardRuby    int       `gorm:"default:0" json:"reward_ruby"`
	RewardXP      int       `gorm:"column:reward_xp;default:0" json:"reward_xp"`
	Active        *bool     `gorm:"default:true;index" json:"active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LevelQuestInstance binds a level template to one owner. One per
// (owner, template); duplicate unlocks are skipped.
type LevelQuestInstance struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerKey    string     `gorm:"size:40;uniqueIndex:uniq_level_unlock;not null" json:"-"`
	UserID      *int64     `gorm:"index:idx_level_owner" json:"user_id,omitempty"`
	ClientID    *string    `gorm:"size:36;index:idx_level_owner" json:"client_id,omitempty"`
	TemplateID  int64      `gorm:"index;uniqueIndex:uniq_level_unlock;not null" json:"template_id"`
	Progress    int        `gorm:"default:0" json:"progress"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	Claimed     bool       `gorm:"default:false" json:"claimed"`
	UnlockedAt  time.Time  `gorm:"autoCreateTime" json:"unlocked_at"`
	CompletedAt *time.Time `json:"completed_at"`
	ClaimedAt   *time.Time `json:"claimed_at"`
}
