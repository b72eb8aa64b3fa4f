package tokens

import "time"

// Intake is the token-intake entry point (C10): the single documented
// operation the out-of-scope launchpad websocket producer calls to register
// a newly observed mint (SPEC_FULL.md §4.10).
type Intake struct {
	repo *Repository
}

// NewIntake builds an Intake bound to the token repository.
func NewIntake(repo *Repository) *Intake {
	return &Intake{repo: repo}
}

// RegisterMint is idempotent: if the mint is already known, it is a no-op
// that returns the existing token id. sourceCreatedAt, if zero, defaults to
// now.
func (i *Intake) RegisterMint(mint string, sourceCreatedAt time.Time) (int64, error) {
	createdAt := sourceCreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return i.repo.UpsertToken(mint, StatusMonitoring, createdAt)
}
