// Package archive implements the optional snapshot archive sink (SPEC_FULL.md
// §4.12): a periodic job that batches score snapshots older than the
// configured retention window into newline-delimited JSON, uploads the batch
// to S3, and prunes the rows only after a successful upload (at-least-once).
//
// Orchestration shape (stage -> describe/checksum -> upload -> prune only on
// success) is grounded on the teacher's backup-service pattern; the teacher's
// own S3 call site was not present in the retrieved pack, so the upload call
// here is authored directly against aws-sdk-go-v2's documented manager API
// (see DESIGN.md).
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/tokenpulse/internal/modules/settings"
	"github.com/aristath/tokenpulse/internal/modules/tokens"
	"github.com/aristath/tokenpulse/internal/utils"
)

// Uploader is the subset of *manager.Uploader this sink needs, so tests can
// substitute a fake without touching real S3.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Sink is the optional S3 archive job (SPEC_FULL.md §4.12).
type Sink struct {
	tokens   *tokens.Repository
	settings *settings.Service
	uploader Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger

	batchSize int
}

// NewSink builds a Sink bound to an S3 Uploader built from an
// *s3.Client (via config.LoadDefaultConfig + s3.NewFromConfig +
// manager.NewUploader) at wiring time.
func NewSink(tokenRepo *tokens.Repository, settingsSvc *settings.Service, uploader Uploader, bucket, prefix string, log zerolog.Logger) *Sink {
	return &Sink{
		tokens:    tokenRepo,
		settings:  settingsSvc,
		uploader:  uploader,
		bucket:    bucket,
		prefix:    prefix,
		log:       log.With().Str("component", "archive_sink").Logger(),
		batchSize: 1000,
	}
}

// Name implements the teacher's cron.Job interface.
func (s *Sink) Name() string { return "archive_snapshots" }

// Run performs one archive cycle: stage eligible rows, upload, prune only on
// success. Upload failures leave the rows in place for the next run
// (at-least-once per SPEC_FULL.md §4.12).
func (s *Sink) Run() error {
	defer utils.OperationTimer("archive_snapshots", s.log)()

	if !s.settings.GetBool("archive_to_s3_enabled", false) {
		return nil
	}

	retentionDays := s.settings.GetInt("archive_snapshot_retention_days", 30)
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	snapshots, err := s.tokens.SnapshotsOlderThan(cutoff, s.batchSize)
	if err != nil {
		return fmt.Errorf("archive sink: stage snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := encodeBatch(snapshots)
	if err != nil {
		return fmt.Errorf("archive sink: encode batch: %w", err)
	}

	checksum := sha256.Sum256(batch)
	key := fmt.Sprintf("%s/%s/%s.ndjson", s.prefix, cutoff.Format("2006-01"), hex.EncodeToString(checksum[:8]))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(batch),
	}); err != nil {
		s.log.Warn().Err(err).Str("key", key).Int("rows", len(snapshots)).Msg("archive upload failed, leaving rows in place")
		return fmt.Errorf("archive sink: upload: %w", err)
	}

	oldestNotUploaded := snapshots[len(snapshots)-1].CreatedAt
	pruned, err := s.tokens.PruneSnapshots(oldestNotUploaded.Add(time.Nanosecond))
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("upload succeeded but prune failed; rows remain, next run will re-upload them")
		return fmt.Errorf("archive sink: prune: %w", err)
	}

	s.log.Info().Str("key", key).Int("uploaded", len(snapshots)).Int("pruned", pruned).Msg("archived snapshot batch")
	return nil
}

func encodeBatch(snapshots []tokens.ScoreSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, snap := range snapshots {
		if err := enc.Encode(snap); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
