package sql

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/phoenixclub/phoenix-bot/phoenix"
)

const (
	mySQLDuplicateEntry   = 1062
	sqlLiteDuplicateEntry = 1555
)

func (p *Provider) isDuplicateConflict(err error) bool {
	var me1 *mysql.MySQLError
	if errors.As(err, &me1) && (me1.Number == mySQLDuplicateEntry || me1.Number == sqlLiteDuplicateEntry) {
		return true
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}
	return false
}

func paramTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func (p *Provider) GetSetting(name string) (string, error) {
	q := p.primaryConnection.QueryRow("SELECT value FROM settings WHERE name = ?", name)
	located := ""
	err := q.Scan(&located)
	if errors.Is(err, sql.ErrNoRows) {
		return "", phoenix.ErrNoResultFound
	}
	return located, err
}

func (p *Provider) GetSettings(names ...string) (map[string]string, error) {
	settings := map[string]string{}
	if len(names) == 0 {
		return settings, nil
	}

	args := make([]any, len(names))
	placeholders := make([]string, len(names))
	for i, name := range names {
		args[i] = name
		placeholders[i] = "?"
	}

	rows, err := p.primaryConnection.Query("SELECT name, value FROM settings WHERE name IN ("+strings.Join(placeholders, ",")+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		settings[name] = value
	}
	return settings, rows.Err()
}

func (p *Provider) GetTagCatalog() (phoenix.TagCatalog, error) {
	settings, err := p.GetSettings(phoenix.SettingMemberRoleID, phoenix.SettingCoLeaderRoleID, phoenix.SettingLeaderRoleID)
	if err != nil {
		return phoenix.TagCatalog{}, err
	}
	return phoenix.TagCatalog{
		MemberTagID:   settings[phoenix.SettingMemberRoleID],
		CoLeaderTagID: settings[phoenix.SettingCoLeaderRoleID],
		LeaderTagID:   settings[phoenix.SettingLeaderRoleID],
	}, nil
}

func (p *Provider) GetProjectRoleMappings() ([]phoenix.ProjectRoleMapping, error) {
	rows, err := p.primaryConnection.Query(
		"SELECT id, discord_accepted_role_id, discord_bonus_role_id FROM projects " +
			"WHERE discord_accepted_role_id IS NOT NULL OR discord_bonus_role_id IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []phoenix.ProjectRoleMapping
	for rows.Next() {
		var mapping phoenix.ProjectRoleMapping
		accepted := sql.NullString{}
		bonus := sql.NullString{}
		if err := rows.Scan(&mapping.ProjectID, &accepted, &bonus); err != nil {
			return nil, err
		}
		mapping.AcceptedTagID = accepted.String
		mapping.BonusTagID = bonus.String
		mappings = append(mappings, mapping)
	}
	return mappings, rows.Err()
}

func (p *Provider) IsLinked(discordID string) (bool, error) {
	q := p.primaryConnection.QueryRow("SELECT 1 FROM discord_links WHERE discord_id = ? LIMIT 1", discordID)
	exists := 0
	err := q.Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (p *Provider) GetLinkedIdentity(discordID string) (*phoenix.LinkedIdentity, error) {
	q := p.primaryConnection.QueryRow(
		"SELECT discord_id, user_id, discord_username, linked_at FROM discord_links WHERE discord_id = ?", discordID)

	identity := phoenix.LinkedIdentity{}
	var linkedAt any
	err := q.Scan(&identity.DiscordID, &identity.UserID, &identity.Username, &linkedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, phoenix.ErrNoResultFound
	}
	if err != nil {
		return nil, err
	}
	identity.LinkedAt = timeFromScan(linkedAt)
	return &identity, nil
}

func (p *Provider) GetMembershipByDiscordID(discordID string) (*phoenix.MembershipRecord, error) {
	q := p.primaryConnection.QueryRow(
		"SELECT u.id, u.role, u.active_member, u.updated_at "+
			"FROM users u "+
			"JOIN discord_links dl ON u.id = dl.user_id "+
			"WHERE dl.discord_id = ?", discordID)

	record := phoenix.MembershipRecord{}
	var active int
	var updatedAt any
	err := q.Scan(&record.UserID, &record.Tier, &active, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, phoenix.ErrNoResultFound
	}
	if err != nil {
		return nil, err
	}
	record.Active = active != 0
	record.UpdatedAt = timeFromScan(updatedAt)
	return &record, nil
}

func (p *Provider) GetAcceptedProjectGrants(discordID string) ([]phoenix.ProjectGrant, error) {
	rows, err := p.primaryConnection.Query(
		"SELECT DISTINCT p.discord_accepted_role_id, p.discord_bonus_role_id, pa.bonus_grant "+
			"FROM project_assignments pa "+
			"JOIN projects p ON pa.project_id = p.id "+
			"JOIN discord_links dl ON pa.user_id = dl.user_id "+
			"WHERE dl.discord_id = ? AND pa.status = ?", discordID, phoenix.AssignmentAccepted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []phoenix.ProjectGrant
	for rows.Next() {
		var grant phoenix.ProjectGrant
		accepted := sql.NullString{}
		bonus := sql.NullString{}
		if err := rows.Scan(&accepted, &bonus, &grant.BonusGrant); err != nil {
			return nil, err
		}
		grant.AcceptedTagID = accepted.String
		grant.BonusTagID = bonus.String
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func (p *Provider) GetChangedDiscordIDs(table phoenix.WatchedTable, since time.Time) ([]string, error) {
	var query string
	switch table {
	case phoenix.WatchedUsers:
		query = "SELECT dl.discord_id FROM users u " +
			"JOIN discord_links dl ON u.id = dl.user_id " +
			"WHERE u.updated_at > ?"
	case phoenix.WatchedAssignments:
		query = "SELECT DISTINCT dl.discord_id FROM project_assignments pa " +
			"JOIN discord_links dl ON pa.user_id = dl.user_id " +
			"WHERE pa.updated_at > ?"
	case phoenix.WatchedLinks:
		query = "SELECT discord_id FROM discord_links WHERE linked_at > ?"
	default:
		return nil, errors.New("unwatched table '" + string(table) + "'")
	}

	rows, err := p.primaryConnection.Query(query, paramTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Provider) GetLatestChange(table phoenix.WatchedTable) (time.Time, error) {
	var query string
	switch table {
	case phoenix.WatchedUsers:
		query = "SELECT MAX(updated_at) FROM users"
	case phoenix.WatchedAssignments:
		query = "SELECT MAX(updated_at) FROM project_assignments"
	case phoenix.WatchedLinks:
		query = "SELECT MAX(linked_at) FROM discord_links"
	default:
		return time.Time{}, errors.New("unwatched table '" + string(table) + "'")
	}

	var latest any
	if err := p.primaryConnection.QueryRow(query).Scan(&latest); err != nil {
		return time.Time{}, err
	}
	return timeFromScan(latest), nil
}

func (p *Provider) UpsertSetting(name, value string) error {
	_, err := p.primaryConnection.Exec("INSERT INTO settings (name, value) VALUES (?, ?)", name, value)
	if p.isDuplicateConflict(err) {
		_, err = p.primaryConnection.Exec("UPDATE settings SET value = ? WHERE name = ?", value, name)
	}
	return err
}

func (p *Provider) CreateUser(userID, name, email string, tier phoenix.Tier) error {
	_, err := p.primaryConnection.Exec(
		"INSERT INTO users (id, name, email, role) VALUES (?, ?, ?, ?)", userID, name, email, tier)
	if p.isDuplicateConflict(err) {
		return nil
	}
	return err
}

func (p *Provider) SetUserTier(userID string, tier phoenix.Tier) error {
	_, err := p.primaryConnection.Exec(
		"UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", tier, userID)
	return err
}

func (p *Provider) SetUserActive(userID string, active bool) error {
	flag := 0
	if active {
		flag = 1
	}
	_, err := p.primaryConnection.Exec(
		"UPDATE users SET active_member = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", flag, userID)
	return err
}

func (p *Provider) LinkDiscord(discordID, userID, username string) error {
	_, err := p.primaryConnection.Exec(
		"INSERT INTO discord_links (discord_id, user_id, discord_username, linked_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)",
		discordID, userID, username)
	if p.isDuplicateConflict(err) {
		_, err = p.primaryConnection.Exec(
			"UPDATE discord_links SET user_id = ?, discord_username = ?, linked_at = CURRENT_TIMESTAMP WHERE discord_id = ?",
			userID, username, discordID)
	}
	return err
}

func (p *Provider) UnlinkDiscord(discordID string) error {
	_, err := p.primaryConnection.Exec("DELETE FROM discord_links WHERE discord_id = ?", discordID)
	return err
}

func (p *Provider) CreateProject(projectID, title, acceptedTagID, bonusTagID string) error {
	accepted := sql.NullString{String: acceptedTagID, Valid: acceptedTagID != ""}
	bonus := sql.NullString{String: bonusTagID, Valid: bonusTagID != ""}
	_, err := p.primaryConnection.Exec(
		"INSERT INTO projects (id, title, discord_accepted_role_id, discord_bonus_role_id) VALUES (?, ?, ?, ?)",
		projectID, title, accepted, bonus)
	if p.isDuplicateConflict(err) {
		return nil
	}
	return err
}

func (p *Provider) SetAssignment(userID, projectID string, status phoenix.AssignmentStatus, grant phoenix.BonusGrant) error {
	_, err := p.primaryConnection.Exec(
		"INSERT INTO project_assignments (user_id, project_id, status, bonus_grant, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)",
		userID, projectID, status, grant)
	if p.isDuplicateConflict(err) {
		_, err = p.primaryConnection.Exec(
			"UPDATE project_assignments SET status = ?, bonus_grant = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND project_id = ?",
			status, grant, userID, projectID)
	}
	return err
}
