package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tokenpulse/internal/modules/settings"
	"github.com/aristath/tokenpulse/internal/modules/tokens"
	testingutil "github.com/aristath/tokenpulse/internal/testing"
)

type fakeUploader struct {
	calls int
	keys  []string
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.calls++
	if input.Key != nil {
		f.keys = append(f.keys, *input.Key)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{}, nil
}

func newTestSink(t *testing.T, uploader Uploader) (*Sink, *tokens.Repository, *settings.Service) {
	t.Helper()
	tokensDB, cleanupTokens := testingutil.NewTestDB(t, "tokens")
	t.Cleanup(cleanupTokens)
	configDB, cleanupConfig := testingutil.NewTestDB(t, "config")
	t.Cleanup(cleanupConfig)

	tokenRepo := tokens.NewRepository(tokensDB.Conn(), zerolog.Nop())
	settingsRepo := settings.NewRepository(configDB.Conn(), zerolog.Nop())
	settingsSvc := settings.NewService(settingsRepo, zerolog.Nop())

	sink := NewSink(tokenRepo, settingsSvc, uploader, "test-bucket", "archive", zerolog.Nop())
	return sink, tokenRepo, settingsSvc
}

func TestSink_Run_NoopWhenDisabled(t *testing.T) {
	uploader := &fakeUploader{}
	sink, _, _ := newTestSink(t, uploader)

	require.NoError(t, sink.Run())
	assert.Equal(t, 0, uploader.calls, "archive_to_s3_enabled defaults to false")
}

func TestSink_Run_UploadsAndPrunesOldSnapshots(t *testing.T) {
	uploader := &fakeUploader{}
	sink, tokenRepo, settingsSvc := newTestSink(t, uploader)
	require.NoError(t, settingsSvc.Set("archive_to_s3_enabled", "true"))
	require.NoError(t, settingsSvc.Set("archive_snapshot_retention_days", "1"))

	old := time.Now().Add(-48 * time.Hour)
	id, err := tokenRepo.UpsertToken("MintOld", tokens.StatusActive, old)
	require.NoError(t, err)
	_, err = tokenRepo.AppendScoreSnapshot(tokens.ScoreSnapshot{
		TokenID:       id,
		CreatedAt:     old,
		ModelName:     "hybrid_momentum",
		SmoothedTotal: 0.5,
	})
	require.NoError(t, err)

	require.NoError(t, sink.Run())
	assert.Equal(t, 1, uploader.calls)

	remaining, err := tokenRepo.SnapshotsOlderThan(time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining, "uploaded snapshots should be pruned")
}

func TestSink_Run_LeavesRowsOnUploadFailure(t *testing.T) {
	uploader := &fakeUploader{err: assert.AnError}
	sink, tokenRepo, settingsSvc := newTestSink(t, uploader)
	require.NoError(t, settingsSvc.Set("archive_to_s3_enabled", "true"))
	require.NoError(t, settingsSvc.Set("archive_snapshot_retention_days", "1"))

	old := time.Now().Add(-48 * time.Hour)
	id, err := tokenRepo.UpsertToken("MintOld", tokens.StatusActive, old)
	require.NoError(t, err)
	_, err = tokenRepo.AppendScoreSnapshot(tokens.ScoreSnapshot{
		TokenID:       id,
		CreatedAt:     old,
		ModelName:     "hybrid_momentum",
		SmoothedTotal: 0.5,
	})
	require.NoError(t, err)

	require.Error(t, sink.Run())

	remaining, err := tokenRepo.SnapshotsOlderThan(time.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "a failed upload must leave rows in place for the next run")
}

func TestEncodeBatch_ProducesNewlineDelimitedJSON(t *testing.T) {
	batch, err := encodeBatch([]tokens.ScoreSnapshot{
		{TokenID: 1, ModelName: "hybrid_momentum"},
		{TokenID: 2, ModelName: "hybrid_momentum"},
	})
	require.NoError(t, err)

	var lines []json.RawMessage
	decoder := json.NewDecoder(bytes.NewReader(batch))
	for {
		var line json.RawMessage
		if err := decoder.Decode(&line); err != nil {
			break
		}
		lines = append(lines, line)
	}
	assert.Len(t, lines, 2)
}
