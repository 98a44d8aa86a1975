package refreshtokens

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// MemoryRepository keeps records in a map guarded by a mutex. Returned
// records are copies, so callers can never mutate stored state directly.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]models.RefreshToken)}
}

func (r *MemoryRepository) Insert(_ context.Context, t *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[t.Token]; ok {
		return common.ErrConflict
	}
	r.tokens[t.Token] = clone(t)
	return nil
}

func (r *MemoryRepository) FindByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := clone(&t)
	return &c, nil
}

func (r *MemoryRepository) FindByUser(_ context.Context, userID string) ([]models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.RefreshToken, 0)
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, clone(&t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedOn.After(out[j].CreatedOn)
	})
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, t *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRevocable(t.Token); err != nil {
		return err
	}
	r.applyRevocation(t)
	return nil
}

func (r *MemoryRepository) Rotate(_ context.Context, old, next *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRevocable(old.Token); err != nil {
		return err
	}
	if _, ok := r.tokens[next.Token]; ok {
		return common.ErrConflict
	}
	r.applyRevocation(old)
	r.tokens[next.Token] = clone(next)
	return nil
}

func (r *MemoryRepository) checkRevocable(token string) error {
	stored, ok := r.tokens[token]
	if !ok {
		return common.ErrorNotFound
	}
	if stored.RevokedOn != nil {
		return common.ErrConflict
	}
	return nil
}

// applyRevocation copies only the revocation fields; identity fields of a
// stored record are immutable.
func (r *MemoryRepository) applyRevocation(t *models.RefreshToken) {
	stored := r.tokens[t.Token]
	if t.RevokedOn != nil {
		on := *t.RevokedOn
		stored.RevokedOn = &on
	}
	stored.RevokedByIP = t.RevokedByIP
	stored.RevokedReason = t.RevokedReason
	stored.ReplacedByToken = t.ReplacedByToken
	r.tokens[t.Token] = stored
}

func clone(t *models.RefreshToken) models.RefreshToken {
	c := *t
	if t.RevokedOn != nil {
		on := *t.RevokedOn
		c.RevokedOn = &on
	}
	return c
}
