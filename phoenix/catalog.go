package phoenix

// TagCatalog maps membership tiers to Discord role ids, sourced from the
// settings table. Empty ids mean the tier has no configured tag.
type TagCatalog struct {
	MemberTagID   string
	CoLeaderTagID string
	LeaderTagID   string
}

// TagForTier resolves the tag governing a tier. Unknown tiers fall back to
// the member tag.
func (c TagCatalog) TagForTier(tier Tier) string {
	switch tier {
	case TierLeader:
		return c.LeaderTagID
	case TierCoLeader:
		return c.CoLeaderTagID
	default:
		return c.MemberTagID
	}
}

// All returns the configured membership tags, skipping empty entries.
func (c TagCatalog) All() []string {
	tags := []string{}
	for _, id := range []string{c.MemberTagID, c.CoLeaderTagID, c.LeaderTagID} {
		if id != "" {
			tags = append(tags, id)
		}
	}
	return tags
}
