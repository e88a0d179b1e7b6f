package stats

import (
	"context"
	"testing"

	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/cuonghoang741/vivivi-server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.SetupTestDB(t), zap.NewNop())
}

func TestLevelForXP(t *testing.T) {
	cases := []struct {
		xp    int64
		level int
	}{
		{-50, 1}, // negative XP clamps to zero
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
		{10000, 11},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, LevelForXP(tc.xp), "xp=%d", tc.xp)
	}
}

func TestGetOrCreateDefaults(t *testing.T) {
	svc := newTestService(t)
	owner := model.UserOwner(7)

	st, err := svc.GetOrCreate(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Level)
	assert.EqualValues(t, 0, st.XP)
	assert.Equal(t, MaxEnergy, st.Energy)

	// Second call returns the same row.
	again, err := svc.GetOrCreate(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, st.ID, again.ID)
}

func TestAddXPLevelsUpAtBoundary(t *testing.T) {
	svc := newTestService(t)
	owner := model.UserOwner(7)
	ctx := context.Background()

	level, up, err := svc.AddXP(ctx, owner, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, level)
	assert.False(t, up)

	level, up, err = svc.AddXP(ctx, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, level)
	assert.True(t, up)

	// 100 -> 400 crosses one more boundary.
	level, up, err = svc.AddXP(ctx, owner, 300)
	require.NoError(t, err)
	assert.Equal(t, 3, level)
	assert.True(t, up)

	st, err := svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 400, st.XP)
	assert.Equal(t, 3, st.Level)
}

func TestAddXPNonPositive(t *testing.T) {
	svc := newTestService(t)
	owner := model.UserOwner(7)
	ctx := context.Background()

	level, up, err := svc.AddXP(ctx, owner, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, level)
	assert.False(t, up)

	_, _, err = svc.AddXP(ctx, owner, -10)
	require.NoError(t, err)

	st, err := svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 0, st.XP, "non-positive XP credits nothing")
}

func TestAddEnergyClamps(t *testing.T) {
	svc := newTestService(t)
	owner := model.UserOwner(7)
	ctx := context.Background()

	require.NoError(t, svc.AddEnergy(ctx, owner, 50))
	st, err := svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, MaxEnergy, st.Energy, "clamped at the cap")

	require.NoError(t, svc.AddEnergy(ctx, owner, -30))
	st, err = svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 70, st.Energy)

	require.NoError(t, svc.AddEnergy(ctx, owner, -200))
	st, err = svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, MinEnergy, st.Energy, "clamped at the floor")
}

func TestSetLoginStreak(t *testing.T) {
	svc := newTestService(t)
	owner := model.GuestOwner("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	ctx := context.Background()

	require.NoError(t, svc.SetLoginStreak(ctx, owner, 12))
	st, err := svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 12, st.LoginStreak)
}
