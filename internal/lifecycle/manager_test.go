package lifecycle

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tokenpulse/internal/modules/tokens"
	testingutil "github.com/aristath/tokenpulse/internal/testing"
)

func defaultParams() Params {
	return Params{
		ActivationMinLiquidityUSD: 200,
		MinScore:                  0.1,
		ArchiveBelowHours:         12,
		MonitoringTimeoutHours:    12,
	}
}

func TestDecide_ActivatesWhenQualifyingPoolPresent(t *testing.T) {
	now := time.Now()
	tok := tokens.Token{Status: tokens.StatusMonitoring, CreatedAt: now.Add(-time.Hour)}

	d := decide(tok, true, 0, defaultParams(), now)

	assert.True(t, d.StatusChanged)
	assert.Equal(t, tokens.StatusActive, d.NewStatus)
}

func TestDecide_DeactivatesWhenNoQualifyingPool(t *testing.T) {
	now := time.Now()
	tok := tokens.Token{Status: tokens.StatusActive, CreatedAt: now.Add(-time.Hour)}

	d := decide(tok, false, 0.5, defaultParams(), now)

	assert.True(t, d.StatusChanged)
	assert.Equal(t, tokens.StatusMonitoring, d.NewStatus)
}

func TestDecide_ArchivesAfterMonitoringTimeout(t *testing.T) {
	now := time.Now()
	tok := tokens.Token{Status: tokens.StatusMonitoring, CreatedAt: now.Add(-13 * time.Hour)}

	d := decide(tok, false, 0, defaultParams(), now)

	assert.True(t, d.StatusChanged)
	assert.Equal(t, tokens.StatusArchived, d.NewStatus)
}

func TestDecide_StaysMonitoringBeforeTimeout(t *testing.T) {
	now := time.Now()
	tok := tokens.Token{Status: tokens.StatusMonitoring, CreatedAt: now.Add(-11 * time.Hour)}

	d := decide(tok, false, 0, defaultParams(), now)

	assert.False(t, d.StatusChanged)
}

func TestDecide_StartsBelowMinScoreTrackingOnFirstLowScore(t *testing.T) {
	now := time.Now()
	tok := tokens.Token{Status: tokens.StatusActive, CreatedAt: now.Add(-time.Hour)}

	d := decide(tok, true, 0.01, defaultParams(), now)

	assert.False(t, d.StatusChanged)
	require.True(t, d.BelowMinScoreSinceChanged)
	require.NotNil(t, d.BelowMinScoreSince)
	assert.WithinDuration(t, now, *d.BelowMinScoreSince, time.Second)
}

func TestDecide_ArchivesAfterContinuousLowScorePeriod(t *testing.T) {
	now := time.Now()
	since := now.Add(-13 * time.Hour)
	tok := tokens.Token{Status: tokens.StatusActive, CreatedAt: now.Add(-100 * time.Hour), BelowMinScoreSince: &since}

	d := decide(tok, true, 0.01, defaultParams(), now)

	assert.True(t, d.StatusChanged)
	assert.Equal(t, tokens.StatusArchived, d.NewStatus)
}

func TestDecide_DoesNotArchiveBeforeContinuousLowScorePeriodElapses(t *testing.T) {
	now := time.Now()
	since := now.Add(-2 * time.Hour)
	tok := tokens.Token{Status: tokens.StatusActive, CreatedAt: now.Add(-100 * time.Hour), BelowMinScoreSince: &since}

	d := decide(tok, true, 0.01, defaultParams(), now)

	assert.False(t, d.StatusChanged)
}

func TestDecide_ClearsBelowMinScoreSinceOnRecovery(t *testing.T) {
	now := time.Now()
	since := now.Add(-time.Hour)
	tok := tokens.Token{Status: tokens.StatusActive, CreatedAt: now.Add(-100 * time.Hour), BelowMinScoreSince: &since}

	d := decide(tok, true, 0.5, defaultParams(), now)

	assert.False(t, d.StatusChanged)
	require.True(t, d.BelowMinScoreSinceChanged)
	assert.Nil(t, d.BelowMinScoreSince)
}

func TestDecide_ArchivedIsTerminal(t *testing.T) {
	now := time.Now()
	tok := tokens.Token{Status: tokens.StatusArchived, CreatedAt: now.Add(-1000 * time.Hour)}

	d := decide(tok, true, 0, defaultParams(), now)

	assert.False(t, d.StatusChanged)
	assert.False(t, d.BelowMinScoreSinceChanged)
}

func TestManager_Evaluate_PersistsActivation(t *testing.T) {
	db, cleanup := testingutil.NewTestDB(t, "tokens")
	t.Cleanup(cleanup)

	repo := tokens.NewRepository(db.Conn(), zerolog.Nop())
	mgr := NewManager(repo, zerolog.Nop())

	now := time.Now()
	id, err := repo.UpsertToken("MintLifecycle", tokens.StatusMonitoring, now.Add(-time.Hour))
	require.NoError(t, err)
	tok, err := repo.GetToken(id)
	require.NoError(t, err)

	require.NoError(t, mgr.Evaluate(*tok, true, 0, defaultParams(), now))

	updated, err := repo.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, tokens.StatusActive, updated.Status)
	assert.NotNil(t, updated.ActivatedAt)
}
