package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meetscribe/internal/capture"
	"github.com/johnquangdev/meetscribe/internal/infrastructure/cache"
)

const (
	handlePrefix     = "capture:handle:"
	defaultHandleTTL = 30 * time.Second
)

// HandleRegistry issues one-shot capture handles scoped to a tab. A handle
// expires after its TTL and can be redeemed once.
type HandleRegistry struct {
	store *cache.MemoryStore
	ttl   time.Duration
	mu    sync.Mutex
}

var _ capture.HandleIssuer = (*HandleRegistry)(nil)

// NewHandleRegistry creates a registry on store
func NewHandleRegistry(store *cache.MemoryStore, ttl time.Duration) *HandleRegistry {
	if ttl <= 0 {
		ttl = defaultHandleTTL
	}
	return &HandleRegistry{store: store, ttl: ttl}
}

// Issue grants a new handle for tabID
func (r *HandleRegistry) Issue(ctx context.Context, tabID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if tabID == "" {
		return "", fmt.Errorf("tab id is required")
	}

	handle := uuid.NewString()
	r.store.Set(handlePrefix+handle, tabID, r.ttl)
	return handle, nil
}

// Redeem consumes handle and returns the tab it was issued for
func (r *HandleRegistry) Redeem(handle string) (string, bool) {
	if handle == "" {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := handlePrefix + handle
	tabID, ok := r.store.Get(key)
	if !ok {
		return "", false
	}
	r.store.Delete(key)
	return tabID, true
}
