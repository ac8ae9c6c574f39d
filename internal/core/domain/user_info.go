package domain

// Directory attribute names read for the profile summary.
const (
	AttributeEmail   = "profile/email"
	AttributeCountry = "profile/country"
)

// UserProfile is the per-request summary of the current caller.
type UserProfile struct {
	UserID          string
	IsAuthenticated bool
	// Attributes is nil when the directory was not consulted or the lookup failed.
	Attributes *ProfileAttributes
	Error      string
}

// ProfileAttributes holds the directory attributes exposed in the summary.
// Missing attributes are empty strings, never omitted.
type ProfileAttributes struct {
	Email   string
	Country string
}

// NewUserProfile starts a profile for the given identity.
func NewUserProfile(identity Identity) *UserProfile {
	return &UserProfile{
		UserID:          identity.UserID,
		IsAuthenticated: !identity.IsAnonymous(),
	}
}

// ProfileAttributesFrom projects raw directory attributes onto the summary fields.
func ProfileAttributesFrom(attrs map[string][]string) *ProfileAttributes {
	return &ProfileAttributes{
		Email:   FirstValue(attrs, AttributeEmail),
		Country: FirstValue(attrs, AttributeCountry),
	}
}

// FirstValue returns the first value of a multi-valued attribute, or "".
func FirstValue(attrs map[string][]string, name string) string {
	values, ok := attrs[name]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}
