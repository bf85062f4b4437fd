package models

// User is read-only for this engine; follower counts belong to the following subsystem.
type User struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"displayName"`
	Handle          string   `json:"handle"`
	Verified        bool     `json:"verified"`
	Specializations []string `json:"specializations"`
	Followers       int      `json:"followers"`
	Following       int      `json:"following"`
}

// AsAuthor builds the denormalized author reference stored on tips.
func (u *User) AsAuthor() Author {
	return Author{
		ID:       u.ID,
		Name:     u.DisplayName,
		Handle:   u.Handle,
		Verified: u.Verified,
	}
}
