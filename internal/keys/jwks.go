package keys

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// JWKS renders all of a realm's keys (active and retired) as a public JWK
// set for the certs endpoint. Private material never leaves this package.
func (r *Registry) JWKS(realmID uint) (jwk.Set, error) {
	keys, err := r.AllKeys(realmID)
	if err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	for _, key := range keys {
		pub, err := jwk.Import(key.Public())
		if err != nil {
			return nil, fmt.Errorf("failed to import public key: %w", err)
		}
		if err := pub.Set(jwk.KeyIDKey, key.KID); err != nil {
			return nil, err
		}
		if err := pub.Set(jwk.AlgorithmKey, key.Algorithm); err != nil {
			return nil, err
		}
		if err := pub.Set(jwk.KeyUsageKey, "sig"); err != nil {
			return nil, err
		}
		if err := set.AddKey(pub); err != nil {
			return nil, err
		}
	}
	return set, nil
}
