package domain

// CallerContext is the normalised identity of the inbound caller, built once
// per request from a validated bearer token. Role is the token claim and is
// not trusted for security decisions; the stored role is re-resolved.
type CallerContext struct {
	ExternalAuthID string
	Role           Role
}

// HasIdentity reports whether the token carried a usable subject.
func (c CallerContext) HasIdentity() bool {
	return c.ExternalAuthID != ""
}
