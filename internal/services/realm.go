package services

import (
	"context"
	"errors"
	"time"

	"github.com/JunaYa/ferriskey/internal/cache"
	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/store"
)

const realmCacheTTL = time.Minute

// RealmService resolves realm names to realm records. Every request starts
// here, so resolved realms are held in the shared cache briefly.
type RealmService struct {
	store *store.Store
	cache cache.Cache[models.Realm]
}

func NewRealmService(s *store.Store, c cache.Cache[models.Realm]) *RealmService {
	return &RealmService{store: s, cache: c}
}

// Resolve returns the enabled realm for a name, or ErrInvalidRealm when the
// realm is unknown or disabled. The two cases are indistinguishable to the
// caller.
func (s *RealmService) Resolve(ctx context.Context, name string) (*models.Realm, error) {
	realm, err := cache.GetWithFetch(ctx, s.cache, "realm:"+name, realmCacheTTL,
		func(ctx context.Context, _ string) (models.Realm, error) {
			r, err := s.store.GetRealmByName(name)
			if err != nil {
				return models.Realm{}, err
			}
			return *r, nil
		})
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInvalidRealm
		}
		return nil, err
	}
	if !realm.Enabled {
		return nil, ErrInvalidRealm
	}
	return &realm, nil
}
