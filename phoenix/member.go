package phoenix

import "time"

type Tier string

const (
	TierMember   Tier = "member"
	TierCoLeader Tier = "co-leader"
	TierLeader   Tier = "leader"
)

// MembershipRecord is mutated by the membership system and read-only here.
type MembershipRecord struct {
	UserID    string
	Tier      Tier
	Active    bool
	UpdatedAt time.Time
}
