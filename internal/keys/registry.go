package keys

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/store"

	"github.com/google/uuid"
)

// Registry loads, generates, and caches signing keys per realm. Parsing PEM
// and generating key pairs is expensive, so resolved keys are held in memory
// until rotated.
type Registry struct {
	store *store.Store

	mu     sync.RWMutex
	active map[uint]*Key // realm ID -> active key
}

func NewRegistry(s *store.Store) *Registry {
	return &Registry{
		store:  s,
		active: make(map[uint]*Key),
	}
}

// ActiveKey returns the realm's active signing key, generating and
// persisting one on first use.
func (r *Registry) ActiveKey(realm *models.Realm) (*Key, error) {
	r.mu.RLock()
	key, ok := r.active[realm.ID]
	r.mu.RUnlock()
	if ok {
		return key, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock
	if key, ok := r.active[realm.ID]; ok {
		return key, nil
	}

	record, err := r.store.GetActiveSigningKey(realm.ID)
	switch {
	case err == nil:
		key, err = parseRecord(record)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, store.ErrRecordNotFound):
		key, err = r.generate(realm)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	r.active[realm.ID] = key
	return key, nil
}

// AllKeys returns every key ever issued for the realm, active first.
// Retired keys stay published so tokens signed before a rotation still
// verify.
func (r *Registry) AllKeys(realmID uint) ([]*Key, error) {
	records, err := r.store.ListSigningKeys(realmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signing keys: %w", err)
	}

	keys := make([]*Key, 0, len(records))
	for i := range records {
		key, err := parseRecord(&records[i])
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Rotate retires the realm's active key. The next ActiveKey call generates
// a replacement; old keys remain in the store for verification.
func (r *Registry) Rotate(realmID uint) error {
	if err := r.store.DeactivateSigningKeys(realmID); err != nil {
		return fmt.Errorf("failed to deactivate signing keys: %w", err)
	}

	r.mu.Lock()
	delete(r.active, realmID)
	r.mu.Unlock()
	return nil
}

func (r *Registry) generate(realm *models.Realm) (*Key, error) {
	signer, err := generatePrivateKey(realm.SigningAlgorithm)
	if err != nil {
		return nil, err
	}

	pemData, err := encodePrivateKeyPEM(signer)
	if err != nil {
		return nil, err
	}

	record := &models.SigningKey{
		RealmID:    realm.ID,
		KID:        uuid.New().String(),
		Algorithm:  realm.SigningAlgorithm,
		PrivatePEM: pemData,
		Active:     true,
	}
	if err := r.store.CreateSigningKey(record); err != nil {
		return nil, fmt.Errorf("failed to persist signing key: %w", err)
	}

	return &Key{
		KID:       record.KID,
		Algorithm: record.Algorithm,
		Private:   signer,
	}, nil
}

func parseRecord(record *models.SigningKey) (*Key, error) {
	signer, err := parsePrivateKeyPEM(record.PrivatePEM)
	if err != nil {
		return nil, err
	}
	return &Key{
		KID:       record.KID,
		Algorithm: record.Algorithm,
		Private:   signer,
	}, nil
}
