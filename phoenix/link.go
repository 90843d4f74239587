package phoenix

import "time"

// LinkedIdentity ties a Discord account to a club user.
// At most one UserID per DiscordID.
type LinkedIdentity struct {
	DiscordID string
	UserID    string
	Username  string
	LinkedAt  time.Time
}
