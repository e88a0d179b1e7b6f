package milestone

import (
	"context"
	"testing"

	"github.com/cuonghoang741/vivivi-server/game/economy"
	"github.com/cuonghoang741/vivivi-server/game/notify"
	"github.com/cuonghoang741/vivivi-server/game/reward"
	"github.com/cuonghoang741/vivivi-server/game/stats"
	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/cuonghoang741/vivivi-server/scheduler"
	"github.com/cuonghoang741/vivivi-server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	_, ps := testutil.SetupTestCache(t)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	eco := economy.NewService(db, logger)
	st := stats.NewService(db, logger)
	nc := notify.NewCenter(sched, ps, notify.Config{}, logger)
	return NewService(db, eco, st, nc, logger), db
}

func guest(t *testing.T) model.Owner {
	t.Helper()
	return model.GuestOwner("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
}

func TestCanClaim(t *testing.T) {
	assert.True(t, CanClaim(10, 10))
	assert.True(t, CanClaim(55, 50))
	assert.False(t, CanClaim(9, 10))
	assert.False(t, CanClaim(100, 15), "15 is not a threshold")
	assert.False(t, CanClaim(0, 0))
}

func TestRewardsGrowMonotonically(t *testing.T) {
	prev := reward.Reward{}
	for _, m := range Thresholds {
		r := RewardFor(m)
		assert.Greater(t, r.VCoin, prev.VCoin, "milestone %d", m)
		assert.GreaterOrEqual(t, r.Ruby, prev.Ruby, "milestone %d", m)
		assert.Greater(t, r.XP, prev.XP, "milestone %d", m)
		prev = r
	}
}

func TestStatusMarksReachedAndClaimed(t *testing.T) {
	svc, _ := newTestService(t)
	owner := guest(t)
	ctx := context.Background()

	_, err := svc.Claim(ctx, owner, "mira", 10, 42)
	require.NoError(t, err)

	views, err := svc.Status(ctx, owner, "mira", 42)
	require.NoError(t, err)
	require.Len(t, views, len(Thresholds))

	byMilestone := map[int]View{}
	for _, v := range views {
		byMilestone[v.Milestone] = v
	}
	assert.True(t, byMilestone[10].Reached)
	assert.True(t, byMilestone[10].Claimed)
	assert.True(t, byMilestone[40].Reached)
	assert.False(t, byMilestone[40].Claimed)
	assert.False(t, byMilestone[50].Reached)
}

func TestClaimCreditsOnce(t *testing.T) {
	svc, db := newTestService(t)
	owner := guest(t)
	ctx := context.Background()

	res, err := svc.Claim(ctx, owner, "mira", 25, 30)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Milestone)
	assert.Equal(t, 250, res.Reward.VCoin)

	_, err = svc.Claim(ctx, owner, "mira", 25, 30)
	assert.ErrorIs(t, err, reward.ErrAlreadyClaimed)

	bal, err := economy.NewService(db, zap.NewNop()).Balance(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 250, bal.VCoin)
}

func TestClaimPerCharacter(t *testing.T) {
	svc, _ := newTestService(t)
	owner := guest(t)
	ctx := context.Background()

	_, err := svc.Claim(ctx, owner, "mira", 10, 10)
	require.NoError(t, err)

	// The same threshold on a different character is independent.
	_, err = svc.Claim(ctx, owner, "yuna", 10, 10)
	require.NoError(t, err)

	_, err = svc.Claim(ctx, owner, "yuna", 10, 10)
	assert.ErrorIs(t, err, reward.ErrAlreadyClaimed)
}

func TestClaimGates(t *testing.T) {
	svc, _ := newTestService(t)
	owner := guest(t)
	ctx := context.Background()

	_, err := svc.Claim(ctx, owner, "mira", 15, 100)
	assert.ErrorIs(t, err, reward.ErrNotFound, "15 is not a threshold")

	_, err = svc.Claim(ctx, owner, "mira", 50, 49)
	assert.ErrorIs(t, err, reward.ErrNotEligible)

	_, err = svc.Claim(ctx, model.Owner{}, "mira", 10, 10)
	assert.ErrorIs(t, err, reward.ErrUnauthenticated)
}

func TestDuplicateClaimRowRejectedByStore(t *testing.T) {
	svc, db := newTestService(t)
	owner := guest(t)
	ctx := context.Background()

	_, err := svc.Claim(ctx, owner, "mira", 10, 12)
	require.NoError(t, err)

	// A second row for the same (owner, character, milestone) would mean a
	// second credited reward; the store must refuse it even though the
	// owner id columns are NULL on one side.
	dup := model.MilestoneClaim{
		OwnerKey:  owner.Key(),
		ClientID:  owner.ClientID,
		Character: "mira",
		Milestone: 10,
		Claimed:   true,
	}
	assert.Error(t, db.Create(&dup).Error)
}

func TestClaimCanLevelUp(t *testing.T) {
	svc, _ := newTestService(t)
	owner := guest(t)
	ctx := context.Background()

	// Milestone 25 grants 100 XP, which crosses the level-2 boundary.
	res, err := svc.Claim(ctx, owner, "mira", 25, 25)
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.NewLevel, "100 XP crosses the level-2 boundary")
}
