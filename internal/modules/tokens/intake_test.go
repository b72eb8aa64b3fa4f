package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMint_CreatesMonitoringToken(t *testing.T) {
	repo := newTestRepository(t)
	intake := NewIntake(repo)

	id, err := intake.RegisterMint("MintNew", time.Now())
	require.NoError(t, err)

	tok, err := repo.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, StatusMonitoring, tok.Status)
}

func TestRegisterMint_IsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	intake := NewIntake(repo)

	id1, err := intake.RegisterMint("MintDup", time.Now())
	require.NoError(t, err)
	id2, err := intake.RegisterMint("MintDup", time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestRegisterMint_DefaultsTimestampWhenZero(t *testing.T) {
	repo := newTestRepository(t)
	intake := NewIntake(repo)

	before := time.Now()
	id, err := intake.RegisterMint("MintZeroTs", time.Time{})
	require.NoError(t, err)

	tok, err := repo.GetToken(id)
	require.NoError(t, err)
	assert.True(t, !tok.CreatedAt.Before(before.Add(-time.Second)))
}
