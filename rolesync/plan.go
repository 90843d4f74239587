package rolesync

import "github.com/phoenixclub/phoenix-bot/phoenix"

type CategoryCounts struct {
	Added   int
	Removed int
}

type Detail struct {
	Project    CategoryCounts
	Membership CategoryCounts
}

// Plan is the minimal set of role changes bringing a member's actual tags in
// line with the desired ones.
type Plan struct {
	Add    []string
	Remove []string
	Detail Detail
}

func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// BuildPlan diffs a linked member's roles. Only managed tags are ever
// touched; anything the member holds outside allProject/allMembership is
// left alone. An empty desiredMembership strips every held membership tag,
// which also enforces the at-most-one-tier rule on tier changes.
func BuildPlan(actual, desiredProject phoenix.RoleSet, desiredMembership string, allProject, allMembership phoenix.RoleSet) Plan {
	heldProject := actual.Intersect(allProject)
	heldMembership := actual.Intersect(allMembership)

	addProject := desiredProject.Diff(actual)
	removeProject := heldProject.Diff(desiredProject)

	desiredMembershipSet := phoenix.NewRoleSet(desiredMembership)
	addMembership := desiredMembershipSet.Diff(actual)
	removeMembership := heldMembership.Diff(desiredMembershipSet)

	plan := Plan{
		Add:    addProject.Union(addMembership).Slice(),
		Remove: removeProject.Union(removeMembership).Slice(),
		Detail: Detail{
			Project:    CategoryCounts{Added: addProject.Len(), Removed: removeProject.Len()},
			Membership: CategoryCounts{Added: addMembership.Len(), Removed: removeMembership.Len()},
		},
	}
	return plan
}

// RemovalPlan strips every managed tag from an unlinked member.
func RemovalPlan(actual, allProject, allMembership phoenix.RoleSet) Plan {
	removeProject := actual.Intersect(allProject)
	removeMembership := actual.Intersect(allMembership)

	return Plan{
		Remove: removeProject.Union(removeMembership).Slice(),
		Detail: Detail{
			Project:    CategoryCounts{Removed: removeProject.Len()},
			Membership: CategoryCounts{Removed: removeMembership.Len()},
		},
	}
}
