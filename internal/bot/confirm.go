package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pendingAction is an armed confirmation: the closure runs when the user
// answers "confirmar" before the deadline.
type pendingAction struct {
	token     string
	summary   string
	run       func(ctx context.Context)
	expiresAt time.Time
}

// ConfirmManager keeps at most one pending confirmation per user. Arming a
// new one replaces the previous; expired entries are swept in the background.
type ConfirmManager struct {
	mu      sync.Mutex
	pending map[string]*pendingAction
	ttl     time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConfirmManager(ttl time.Duration) *ConfirmManager {
	cm := &ConfirmManager{
		pending: make(map[string]*pendingAction),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go cm.sweep()
	return cm
}

// Close stops the background sweeper. Call it on shutdown.
func (cm *ConfirmManager) Close() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

// Push arms a confirmation for the user and returns the reference token
// shown in the prompt plus the deadline. The token guards against a stale
// confirmar landing on a newer prompt than the one the user read.
func (cm *ConfirmManager) Push(userID, summary string, run func(ctx context.Context)) (token string, expiresAt time.Time) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	// first uuid segment: short enough to retype, unique enough per user
	token = strings.SplitN(uuid.NewString(), "-", 2)[0]
	expiresAt = time.Now().Add(cm.ttl)
	cm.pending[userID] = &pendingAction{
		token:     token,
		summary:   summary,
		run:       run,
		expiresAt: expiresAt,
	}
	return token, expiresAt
}

// Pop removes and returns the user's pending action and its summary. A
// non-empty token must match the armed one; on mismatch the action stays
// armed and ok is false. Expired or absent actions also report ok=false.
func (cm *ConfirmManager) Pop(userID, token string) (run func(ctx context.Context), summary string, ok bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pa, found := cm.pending[userID]
	if !found {
		return nil, "", false
	}
	if time.Now().After(pa.expiresAt) {
		delete(cm.pending, userID)
		return nil, "", false
	}
	if token != "" && token != pa.token {
		return nil, "", false
	}
	delete(cm.pending, userID)
	return pa.run, pa.summary, true
}

// Cancel drops the user's pending action and returns its summary.
// ok is false when nothing was armed or it had already expired.
func (cm *ConfirmManager) Cancel(userID string) (summary string, ok bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pa, found := cm.pending[userID]
	if !found {
		return "", false
	}
	delete(cm.pending, userID)
	if time.Now().After(pa.expiresAt) {
		return "", false
	}
	return pa.summary, true
}

func (cm *ConfirmManager) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-cm.stopCh:
			return
		case <-ticker.C:
			cm.mu.Lock()
			now := time.Now()
			for userID, pa := range cm.pending {
				if now.After(pa.expiresAt) {
					delete(cm.pending, userID)
				}
			}
			cm.mu.Unlock()
		}
	}
}
