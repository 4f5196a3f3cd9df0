package model

const (
	DefaultDisplayName = "User"
	DefaultEmail       = "no-email@example.com"
)

// Identity is the signed-in user as seen by the repository and view-model.
type Identity struct {
	UID     string      `json:"uid"`
	Profile UserProfile `json:"profile"`
}

type UserProfile struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// NewIdentity fills missing profile fields with the defaults shown to the user.
func NewIdentity(uid, displayName, email, photoURL string) *Identity {
	if displayName == "" {
		displayName = DefaultDisplayName
	}
	if email == "" {
		email = DefaultEmail
	}
	return &Identity{
		UID: uid,
		Profile: UserProfile{
			DisplayName: displayName,
			Email:       email,
			PhotoURL:    photoURL,
		},
	}
}

// OwnerID returns the uid, or "" when nobody is signed in.
func (i *Identity) OwnerID() string {
	if i == nil {
		return ""
	}
	return i.UID
}
