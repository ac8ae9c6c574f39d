package domain

// AnonymousUserID is the identity the platform assigns to callers without a
// valid session.
const AnonymousUserID = "anonymous"

// Identity is the caller as resolved by the host platform for one request.
type Identity struct {
	UserID string
}

// NewIdentity creates an identity for the given user ID.
func NewIdentity(userID string) Identity {
	return Identity{UserID: userID}
}

// AnonymousIdentity returns the identity used for unauthenticated callers.
func AnonymousIdentity() Identity {
	return Identity{UserID: AnonymousUserID}
}

// IsPresent reports whether the platform resolved any user ID at all.
func (i Identity) IsPresent() bool {
	return i.UserID != ""
}

// IsAnonymous reports whether the identity is absent or the anonymous sentinel.
func (i Identity) IsAnonymous() bool {
	return i.UserID == "" || i.UserID == AnonymousUserID
}

func (i Identity) String() string {
	if i.UserID == "" {
		return "<none>"
	}
	return i.UserID
}
