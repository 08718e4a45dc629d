package metrics

import "time"

// Recorder abstracts metric recording so services never depend on
// prometheus directly and metrics can be disabled with zero overhead.
type Recorder interface {
	// RecordGrant counts a token-endpoint grant attempt.
	// result: success, invalid_client, invalid_grant, invalid_credentials, error
	RecordGrant(grantType, result string)

	// RecordLogin counts a login state machine outcome per realm
	RecordLogin(realm, result string)

	// RecordTokenIssued counts issued tokens.
	// tokenType: access, refresh, id
	RecordTokenIssued(tokenType, grantType string)

	// RecordLockout counts account lockouts per realm
	RecordLockout(realm string)

	// RecordHTTPRequest records a served request
	RecordHTTPRequest(method, path, status string, duration time.Duration)
}
