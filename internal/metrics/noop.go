package metrics

import "time"

// Noop is a no-operation Recorder used when metrics are disabled.
type Noop struct{}

// Ensure Noop implements Recorder interface at compile time
var _ Recorder = (*Noop)(nil)

// NewNoop creates a new no-operation metrics recorder
func NewNoop() Recorder {
	return &Noop{}
}

func (n *Noop) RecordGrant(grantType, result string)                                  {}
func (n *Noop) RecordLogin(realm, result string)                                      {}
func (n *Noop) RecordTokenIssued(tokenType, grantType string)                         {}
func (n *Noop) RecordLockout(realm string)                                            {}
func (n *Noop) RecordHTTPRequest(method, path, status string, duration time.Duration) {}
