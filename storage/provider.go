package storage

import (
	"time"

	"github.com/phoenixclub/phoenix-bot/phoenix"
)

type Provider interface {
	// Settings and role catalog.
	GetSetting(name string) (string, error)
	GetSettings(names ...string) (map[string]string, error)
	GetTagCatalog() (phoenix.TagCatalog, error)
	GetProjectRoleMappings() ([]phoenix.ProjectRoleMapping, error)

	// Member state, keyed by Discord id.
	IsLinked(discordID string) (bool, error)
	GetLinkedIdentity(discordID string) (*phoenix.LinkedIdentity, error)
	GetMembershipByDiscordID(discordID string) (*phoenix.MembershipRecord, error)
	GetAcceptedProjectGrants(discordID string) ([]phoenix.ProjectGrant, error)

	// Change detection.
	GetChangedDiscordIDs(table phoenix.WatchedTable, since time.Time) ([]string, error)
	GetLatestChange(table phoenix.WatchedTable) (time.Time, error)

	// Writes, used by the account-linking flow and the dashboard.
	UpsertSetting(name, value string) error
	CreateUser(userID, name, email string, tier phoenix.Tier) error
	SetUserTier(userID string, tier phoenix.Tier) error
	SetUserActive(userID string, active bool) error
	LinkDiscord(discordID, userID, username string) error
	UnlinkDiscord(discordID string) error
	CreateProject(projectID, title, acceptedTagID, bonusTagID string) error
	SetAssignment(userID, projectID string, status phoenix.AssignmentStatus, grant phoenix.BonusGrant) error

	Connect() error
	Close() error
}
