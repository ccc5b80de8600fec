package profile

import (
	"regexp"
	"time"
)

// subjectIDPattern constrains IDs before they reach cache filenames.
var subjectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidID reports whether id is a well-formed subject identifier.
func ValidID(id string) bool {
	return subjectIDPattern.MatchString(id)
}

// User is the subset of upstream profile data the embed templates consume.
type User struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	DisplayName        string    `json:"displayName"`
	Pronouns           string    `json:"pronouns"`
	State              string    `json:"state"`
	Status             string    `json:"status"`
	StatusDescription  string    `json:"statusDescription"`
	LastActivity       time.Time `json:"last_activity"`
	UserIcon           string    `json:"userIcon"`
	ProfilePicOverride string    `json:"profilePicOverrideThumbnail"`
	AvatarThumbnail    string    `json:"currentAvatarThumbnailImageUrl"`
}

// AvatarURL picks the displayed picture: profile picture override first,
// then the custom user icon, then the avatar thumbnail.
func (u *User) AvatarURL() string {
	if u.ProfilePicOverride != "" {
		return u.ProfilePicOverride
	}
	if u.UserIcon != "" {
		return u.UserIcon
	}
	return u.AvatarThumbnail
}
