package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/JunaYa/ferriskey/internal/cache"
	"github.com/JunaYa/ferriskey/internal/models"
)

// Lockout tracks failed login attempts per (realm, username) in a windowed
// counter and blocks further attempts once the realm's limit is reached.
// Backed by the shared cache counter so the limit holds across instances.
type Lockout struct {
	counter cache.Counter
}

func NewLockout(counter cache.Counter) *Lockout {
	return &Lockout{counter: counter}
}

func lockoutKey(realmID uint, username string) string {
	return fmt.Sprintf("lockout:%d:%s", realmID, username)
}

// Check returns ErrLockedOut when the account is over the realm's failure
// limit. Counter backend failures are logged and treated as not locked, so
// a cache outage cannot block all logins.
func (l *Lockout) Check(ctx context.Context, realm *models.Realm, username string) error {
	count, err := l.counter.Get(ctx, lockoutKey(realm.ID, username))
	if err != nil {
		log.Printf("[Lockout] counter unavailable, allowing attempt: %v", err)
		return nil
	}
	if count >= int64(realm.MaxLoginFailures) {
		return ErrLockedOut
	}
	return nil
}

// RecordFailure counts a failed attempt and reports whether the account is
// now locked.
func (l *Lockout) RecordFailure(ctx context.Context, realm *models.Realm, username string) bool {
	count, err := l.counter.Incr(ctx, lockoutKey(realm.ID, username), realm.LockoutWindow())
	if err != nil {
		log.Printf("[Lockout] failed to record failure: %v", err)
		return false
	}
	return count >= int64(realm.MaxLoginFailures)
}

// Clear resets the failure count after a successful login.
func (l *Lockout) Clear(ctx context.Context, realm *models.Realm, username string) {
	if err := l.counter.Reset(ctx, lockoutKey(realm.ID, username)); err != nil {
		log.Printf("[Lockout] failed to clear counter: %v", err)
	}
}
