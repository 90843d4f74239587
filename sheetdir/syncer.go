package sheetdir

import (
	"context"
	"fmt"

	"github.com/phoenixclub/phoenix-bot/phoenix"
	"github.com/phoenixclub/phoenix-bot/rolesync"
	"go.uber.org/zap"
)

// Role colors per directory category.
const (
	ColorStatus = 0x2ecc71
	ColorSchool = 0x3498db
	ColorEvent  = 0xa84300
)

// StatusRoles are the only recognized values of the status column. Anything
// else in that column is ignored.
var StatusRoles = []string{"Membru", "Lider", "Co-lider"}

// RowSource yields directory entries; *Directory is the production source.
type RowSource interface {
	Rows(ctx context.Context) ([]Row, error)
}

// RoleService is the slice of the Discord client the syncer needs.
type RoleService interface {
	EnsureRole(ctx context.Context, guildID, name string, color int) (string, error)
	MemberRoles(ctx context.Context, guildID, userID string) ([]string, error)
	AddRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	Members(ctx context.Context, guildID string) ([]rolesync.GuildMember, error)
}

// Summary tallies one directory sync pass.
type Summary struct {
	Rows          int
	RolesEnsured  int
	MembersSynced int
	Errors        int
}

// Syncer mirrors the directory sheet into guild roles. Roles it has ensured
// in the current pass are the only ones it will ever remove; everything else
// on a member is left alone.
type Syncer struct {
	source RowSource
	roles  RoleService
	log    *zap.Logger
}

func NewSyncer(source RowSource, roles RoleService, log *zap.Logger) *Syncer {
	return &Syncer{source: source, roles: roles, log: log}
}

// Sync reads the sheet, ensures every referenced role exists and brings each
// listed member's directory roles in line with their row. Per-member
// failures are tallied and skipped.
func (s *Syncer) Sync(ctx context.Context, guildID string) (Summary, error) {
	rows, err := s.source.Rows(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Rows: len(rows)}

	roleIDs, err := s.ensureRoles(ctx, guildID, rows)
	if err != nil {
		return summary, err
	}
	summary.RolesEnsured = len(roleIDs)

	managed := phoenix.RoleSet{}
	for _, id := range roleIDs {
		managed.Add(id)
	}

	listed := map[string]bool{}
	for _, row := range rows {
		listed[row.DiscordID] = true
		desired := s.desiredRoles(row, roleIDs)
		if err := s.syncMember(ctx, guildID, row.DiscordID, desired, managed); err != nil {
			summary.Errors++
			s.log.Error("directory sync failed for member",
				zap.String("discord_id", row.DiscordID), zap.Error(err))
			continue
		}
		summary.MembersSynced++
	}

	// Members no longer in the sheet lose their directory roles.
	guildMembers, err := s.roles.Members(ctx, guildID)
	if err != nil {
		return summary, fmt.Errorf("list guild members: %w", err)
	}
	for _, member := range guildMembers {
		if member.Bot || listed[member.ID] {
			continue
		}
		if err := s.syncMember(ctx, guildID, member.ID, phoenix.RoleSet{}, managed); err != nil {
			summary.Errors++
			s.log.Error("directory cleanup failed for member",
				zap.String("discord_id", member.ID), zap.Error(err))
		}
	}

	s.log.Info("directory sync completed",
		zap.Int("rows", summary.Rows),
		zap.Int("roles", summary.RolesEnsured),
		zap.Int("synced", summary.MembersSynced),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

// ensureRoles creates any missing directory roles and returns name to id.
// All status roles are ensured even when currently unused, so a demoted
// member's old status role can still be stripped.
func (s *Syncer) ensureRoles(ctx context.Context, guildID string, rows []Row) (map[string]string, error) {
	type want struct {
		name  string
		color int
	}
	wanted := []want{}
	seen := map[string]bool{}

	add := func(name string, color int) {
		if name == "" || seen[name] {
			return
		}
		// "Școala" and "Scoala" variants of the same name share one role.
		for _, w := range wanted {
			if namesEqual(w.name, name) {
				return
			}
		}
		seen[name] = true
		wanted = append(wanted, want{name, color})
	}

	for _, status := range StatusRoles {
		add(status, ColorStatus)
	}
	for _, row := range rows {
		add(row.School, ColorSchool)
		for event := range row.Events {
			add(event, ColorEvent)
		}
	}

	ids := map[string]string{}
	for _, w := range wanted {
		id, err := s.roles.EnsureRole(ctx, guildID, w.name, w.color)
		if err != nil {
			return nil, fmt.Errorf("ensure role %q: %w", w.name, err)
		}
		ids[w.name] = id
	}
	return ids, nil
}

func lookupRole(roleIDs map[string]string, name string) string {
	if id, ok := roleIDs[name]; ok {
		return id
	}
	for candidate, id := range roleIDs {
		if namesEqual(candidate, name) {
			return id
		}
	}
	return ""
}

func (s *Syncer) desiredRoles(row Row, roleIDs map[string]string) phoenix.RoleSet {
	desired := phoenix.RoleSet{}
	if status := canonicalName(row.Status, StatusRoles); status != "" {
		desired.Add(roleIDs[status])
	}
	if row.School != "" {
		desired.Add(lookupRole(roleIDs, row.School))
	}
	for event := range row.Events {
		desired.Add(lookupRole(roleIDs, event))
	}
	return desired
}

func (s *Syncer) syncMember(ctx context.Context, guildID, discordID string, desired, managed phoenix.RoleSet) error {
	held, err := s.roles.MemberRoles(ctx, guildID, discordID)
	if err != nil {
		return fmt.Errorf("fetch member roles: %w", err)
	}
	actual := phoenix.NewRoleSet(held...)

	add := desired.Diff(actual)
	remove := actual.Intersect(managed).Diff(desired)

	if add.Len() > 0 {
		if err := s.roles.AddRoles(ctx, guildID, discordID, add.Slice()); err != nil {
			return fmt.Errorf("add roles: %w", err)
		}
	}
	if remove.Len() > 0 {
		if err := s.roles.RemoveRoles(ctx, guildID, discordID, remove.Slice()); err != nil {
			return fmt.Errorf("remove roles: %w", err)
		}
	}
	return nil
}
