package tokens

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingutil "github.com/aristath/tokenpulse/internal/testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testingutil.NewTestDB(t, "tokens")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestUpsertToken_IsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	id1, err := repo.UpsertToken("MintAAA", StatusMonitoring, now)
	require.NoError(t, err)

	id2, err := repo.UpsertToken("MintAAA", StatusActive, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "re-registering an existing mint must be a no-op returning the same id")

	tok, err := repo.GetToken(id1)
	require.NoError(t, err)
	assert.Equal(t, StatusMonitoring, tok.Status, "the second call's status must not override the first insert")
}

func TestGetTokenByMint_NotFoundReturnsNil(t *testing.T) {
	repo := newTestRepository(t)
	tok, err := repo.GetTokenByMint("DoesNotExist")
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestSetStatus_StampsActivatedAndArchivedTimestamps(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()
	id, err := repo.UpsertToken("MintBBB", StatusMonitoring, now)
	require.NoError(t, err)

	activatedAt := now.Add(time.Minute)
	require.NoError(t, repo.SetStatus(id, StatusActive, activatedAt))

	tok, err := repo.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, tok.Status)
	require.NotNil(t, tok.ActivatedAt)
	assert.WithinDuration(t, activatedAt, *tok.ActivatedAt, time.Second)
	assert.Nil(t, tok.ArchivedAt)

	archivedAt := now.Add(time.Hour)
	require.NoError(t, repo.SetStatus(id, StatusArchived, archivedAt))

	tok, err = repo.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, tok.Status)
	require.NotNil(t, tok.ArchivedAt)
}

func TestAppendScoreSnapshot_ThenLatestSnapshotReturnsIt(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()
	id, err := repo.UpsertToken("MintCCC", StatusActive, now)
	require.NoError(t, err)

	snap := ScoreSnapshot{
		TokenID:   id,
		CreatedAt: now,
		ModelName: "hybrid_momentum",
		RawTotal:  0.5, SmoothedTotal: 0.5,
		PrimaryDex: "raydium",
	}
	_, err = repo.AppendScoreSnapshot(snap)
	require.NoError(t, err)

	latest, err := repo.LatestSnapshot(id)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "hybrid_momentum", latest.ModelName)
	assert.Equal(t, "raydium", latest.PrimaryDex)
}

func TestLatestSnapshot_ReturnsNilWhenTokenNeverScored(t *testing.T) {
	repo := newTestRepository(t)
	id, err := repo.UpsertToken("MintDDD", StatusMonitoring, time.Now())
	require.NoError(t, err)

	latest, err := repo.LatestSnapshot(id)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestScoreSnapshots_AreStrictlyIncreasingInCreationOrder(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()
	id, err := repo.UpsertToken("MintEEE", StatusActive, now)
	require.NoError(t, err)

	var previous time.Time
	for i := 0; i < 5; i++ {
		ts := now.Add(time.Duration(i) * time.Minute)
		_, err := repo.AppendScoreSnapshot(ScoreSnapshot{TokenID: id, CreatedAt: ts, ModelName: "hybrid_momentum"})
		require.NoError(t, err)

		latest, err := repo.LatestSnapshot(id)
		require.NoError(t, err)
		assert.True(t, latest.CreatedAt.After(previous) || previous.IsZero())
		previous = latest.CreatedAt
	}
}

func TestStats_CountsEachStatus(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	_, err := repo.UpsertToken("MintMon", StatusMonitoring, now)
	require.NoError(t, err)
	id2, err := repo.UpsertToken("MintAct", StatusMonitoring, now)
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(id2, StatusActive, now))
	id3, err := repo.UpsertToken("MintArc", StatusMonitoring, now)
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(id3, StatusArchived, now))

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Monitoring)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Archived)
	assert.Equal(t, 3, stats.Total)
}

func TestListDue_HotReturnsActiveTokensPastInterval(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()
	cutoff := now // caller resolves cutoff = now - interval; here interval is 0

	staleID, err := repo.UpsertToken("MintStale", StatusMonitoring, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(staleID, StatusActive, now.Add(-time.Hour)))
	require.NoError(t, repo.TouchProcessed(staleID, now.Add(-time.Minute)))

	freshID, err := repo.UpsertToken("MintFresh", StatusMonitoring, now)
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(freshID, StatusActive, now))
	require.NoError(t, repo.TouchProcessed(freshID, now.Add(time.Hour)))

	due, err := repo.ListDue("hot", cutoff, 10)
	require.NoError(t, err)

	mints := make([]string, 0, len(due))
	for _, tok := range due {
		mints = append(mints, tok.MintAddress)
	}
	assert.Contains(t, mints, "MintStale")
	assert.NotContains(t, mints, "MintFresh")
}

func TestListDue_ExcludesTokenProcessedMoreRecentlyThanInterval(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()
	const hotInterval = 10 * time.Second

	// Processed 2s ago: more recently than the 10s hot interval, so it is
	// not yet due, regardless of being in the past relative to now.
	recentID, err := repo.UpsertToken("MintRecent", StatusMonitoring, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(recentID, StatusActive, now.Add(-time.Hour)))
	require.NoError(t, repo.TouchProcessed(recentID, now.Add(-2*time.Second)))

	// Processed 30s ago: older than the 10s hot interval, so it is due.
	dueID, err := repo.UpsertToken("MintDue", StatusMonitoring, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(dueID, StatusActive, now.Add(-time.Hour)))
	require.NoError(t, repo.TouchProcessed(dueID, now.Add(-30*time.Second)))

	cutoff := now.Add(-hotInterval)
	due, err := repo.ListDue("hot", cutoff, 10)
	require.NoError(t, err)

	mints := make([]string, 0, len(due))
	for _, tok := range due {
		mints = append(mints, tok.MintAddress)
	}
	assert.NotContains(t, mints, "MintRecent", "a token processed more recently than the interval must not be due")
	assert.Contains(t, mints, "MintDue")
}

func TestTryAcquireRelease_DedupesConcurrentDispatch(t *testing.T) {
	repo := newTestRepository(t)

	assert.True(t, repo.TryAcquire(42))
	assert.False(t, repo.TryAcquire(42), "a second dispatch for the same token in the same tick must be rejected")

	repo.Release(42)
	assert.True(t, repo.TryAcquire(42), "after release, the token may be dispatched again")
}

func TestPruneSnapshots_DeletesOnlyOlderRows(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()
	id, err := repo.UpsertToken("MintPrune", StatusActive, now)
	require.NoError(t, err)

	_, err = repo.AppendScoreSnapshot(ScoreSnapshot{TokenID: id, CreatedAt: now.Add(-48 * time.Hour), ModelName: "hybrid_momentum"})
	require.NoError(t, err)
	_, err = repo.AppendScoreSnapshot(ScoreSnapshot{TokenID: id, CreatedAt: now, ModelName: "hybrid_momentum"})
	require.NoError(t, err)

	removed, err := repo.PruneSnapshots(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	latest, err := repo.LatestSnapshot(id)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.WithinDuration(t, now, latest.CreatedAt, time.Second)
}
