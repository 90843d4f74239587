package rolesync

import (
	"errors"

	"github.com/phoenixclub/phoenix-bot/phoenix"
	"github.com/phoenixclub/phoenix-bot/storage"
	"go.uber.org/zap"
)

// resolver computes desired and managed role sets from the durable store.
// With failOpen set, store errors degrade to empty results so a transient
// outage yields no-op diffs instead of stripping roles; otherwise they
// surface to the caller.
type resolver struct {
	store    storage.Provider
	log      *zap.Logger
	failOpen bool
}

func (r resolver) warnOpen(what string, err error) {
	r.log.Warn("store read failed, treating as empty", zap.String("read", what), zap.Error(err))
}

func (r resolver) isLinked(discordID string) (bool, error) {
	linked, err := r.store.IsLinked(discordID)
	if err != nil {
		if !r.failOpen {
			return false, err
		}
		r.warnOpen("is_linked", err)
		return false, nil
	}
	return linked, nil
}

// desiredProjectTags returns the accepted-project tags plus bonus tags for
// received grants. Completed assignments contribute nothing; only rows the
// store recorded as accepted count.
func (r resolver) desiredProjectTags(discordID string) (phoenix.RoleSet, error) {
	grants, err := r.store.GetAcceptedProjectGrants(discordID)
	if err != nil {
		if !r.failOpen {
			return nil, err
		}
		r.warnOpen("accepted_grants", err)
		return phoenix.RoleSet{}, nil
	}

	tags := phoenix.RoleSet{}
	for _, grant := range grants {
		tags.Add(grant.AcceptedTagID)
		if grant.BonusGrant == phoenix.BonusGrantReceived {
			tags.Add(grant.BonusTagID)
		}
	}
	return tags, nil
}

// desiredMembershipTag returns the tag for the member's tier, or "" when the
// identity is unlinked or the membership is inactive.
func (r resolver) desiredMembershipTag(discordID string) (string, error) {
	record, err := r.store.GetMembershipByDiscordID(discordID)
	if errors.Is(err, phoenix.ErrNoResultFound) {
		return "", nil
	}
	if err != nil {
		if !r.failOpen {
			return "", err
		}
		r.warnOpen("membership", err)
		return "", nil
	}
	if !record.Active {
		return "", nil
	}

	catalog, err := r.store.GetTagCatalog()
	if err != nil {
		if !r.failOpen {
			return "", err
		}
		r.warnOpen("tag_catalog", err)
		return "", nil
	}
	return catalog.TagForTier(record.Tier), nil
}

func (r resolver) allProjectTags() (phoenix.RoleSet, error) {
	mappings, err := r.store.GetProjectRoleMappings()
	if err != nil {
		if !r.failOpen {
			return nil, err
		}
		r.warnOpen("project_mappings", err)
		return phoenix.RoleSet{}, nil
	}

	tags := phoenix.RoleSet{}
	for _, mapping := range mappings {
		tags.Add(mapping.AcceptedTagID)
		tags.Add(mapping.BonusTagID)
	}
	return tags, nil
}

func (r resolver) allMembershipTags() (phoenix.RoleSet, error) {
	catalog, err := r.store.GetTagCatalog()
	if err != nil {
		if !r.failOpen {
			return nil, err
		}
		r.warnOpen("tag_catalog", err)
		return phoenix.RoleSet{}, nil
	}
	return phoenix.NewRoleSet(catalog.All()...), nil
}
