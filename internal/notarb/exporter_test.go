package notarb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tokenpulse/internal/modules/settings"
	"github.com/aristath/tokenpulse/internal/modules/tokens"
	testingutil "github.com/aristath/tokenpulse/internal/testing"
)

func newTestExporter(t *testing.T, path string) (*Exporter, *tokens.Repository) {
	t.Helper()
	tokensDB, cleanupTokens := testingutil.NewTestDB(t, "tokens")
	t.Cleanup(cleanupTokens)
	configDB, cleanupConfig := testingutil.NewTestDB(t, "config")
	t.Cleanup(cleanupConfig)

	tokenRepo := tokens.NewRepository(tokensDB.Conn(), zerolog.Nop())
	settingsRepo := settings.NewRepository(configDB.Conn(), zerolog.Nop())
	settingsSvc := settings.NewService(settingsRepo, zerolog.Nop())

	return New(tokenRepo, settingsSvc, path, zerolog.Nop()), tokenRepo
}

func TestExporter_Run_WritesFilteredActiveTokens(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "notarb", "tokens.json")
	exporter, tokenRepo := newTestExporter(t, exportPath)

	now := time.Now()
	activeID, err := tokenRepo.UpsertToken("MintActive", tokens.StatusActive, now)
	require.NoError(t, err)
	_, err = tokenRepo.AppendScoreSnapshot(tokens.ScoreSnapshot{
		TokenID:       activeID,
		CreatedAt:     now,
		ModelName:     "hybrid_momentum",
		SmoothedTotal: 0.8,
		PoolsJSON:     `[{"dex":"raydium","quote":"SOL","address":"PoolA"}]`,
	})
	require.NoError(t, err)

	belowID, err := tokenRepo.UpsertToken("MintBelow", tokens.StatusActive, now)
	require.NoError(t, err)
	_, err = tokenRepo.AppendScoreSnapshot(tokens.ScoreSnapshot{
		TokenID:       belowID,
		CreatedAt:     now,
		ModelName:     "hybrid_momentum",
		SmoothedTotal: 0.01,
	})
	require.NoError(t, err)

	monitoringID, err := tokenRepo.UpsertToken("MintMonitoring", tokens.StatusMonitoring, now)
	require.NoError(t, err)
	_, err = tokenRepo.AppendScoreSnapshot(tokens.ScoreSnapshot{
		TokenID:       monitoringID,
		CreatedAt:     now,
		ModelName:     "hybrid_momentum",
		SmoothedTotal: 0.9,
	})
	require.NoError(t, err)

	require.NoError(t, exporter.Run())

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Len(t, doc.Tokens, 1, "only the active token above notarb_min_score should be exported")
	assert.Equal(t, "MintActive", doc.Tokens[0].Mint)
	assert.Equal(t, []string{"PoolA"}, doc.Tokens[0].Pools)
	assert.Equal(t, float64(1), doc.Metadata["token_count"], "JSON numbers decode into interface{} as float64")
}

func TestExporter_Run_IsAtomicAndOverwritesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "tokens.json")
	require.NoError(t, os.WriteFile(exportPath, []byte("stale"), 0644))

	exporter, tokenRepo := newTestExporter(t, exportPath)
	now := time.Now()
	id, err := tokenRepo.UpsertToken("MintFresh", tokens.StatusActive, now)
	require.NoError(t, err)
	_, err = tokenRepo.AppendScoreSnapshot(tokens.ScoreSnapshot{
		TokenID:       id,
		CreatedAt:     now,
		ModelName:     "hybrid_momentum",
		SmoothedTotal: 0.9,
	})
	require.NoError(t, err)

	require.NoError(t, exporter.Run())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, filepath.Ext(e.Name()) == ".tmp", "no leftover temp file should remain after a successful run")
	}

	var doc Document
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Tokens, 1)
	assert.Equal(t, "MintFresh", doc.Tokens[0].Mint)
}

func TestExporter_Name(t *testing.T) {
	exporter, _ := newTestExporter(t, filepath.Join(t.TempDir(), "tokens.json"))
	assert.Equal(t, "notarb_export", exporter.Name())
}
