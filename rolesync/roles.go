package rolesync

import "context"

// GuildMember is the slice of platform member state the sync needs.
type GuildMember struct {
	ID  string
	Bot bool
}

// RoleManager is the platform role surface consumed by the sync engine.
// Add and Remove apply their whole batch in a single platform call.
type RoleManager interface {
	MemberRoles(ctx context.Context, guildID, userID string) ([]string, error)
	AddRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	Members(ctx context.Context, guildID string) ([]GuildMember, error)
}
