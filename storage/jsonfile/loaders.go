package jsonfile

import (
	"errors"
	"time"

	"github.com/phoenixclub/phoenix-bot/phoenix"
)

func (p *Provider) GetSetting(name string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return "", err
	}
	value, ok := p.data.Settings[name]
	if !ok {
		return "", phoenix.ErrNoResultFound
	}
	return value, nil
}

func (p *Provider) GetSettings(names ...string) (map[string]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return nil, err
	}
	settings := map[string]string{}
	for _, name := range names {
		if value, ok := p.data.Settings[name]; ok {
			settings[name] = value
		}
	}
	return settings, nil
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
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return nil, err
	}
	var mappings []phoenix.ProjectRoleMapping
	for _, project := range p.data.Projects {
		if project.AcceptedTagID == "" && project.BonusTagID == "" {
			continue
		}
		mappings = append(mappings, phoenix.ProjectRoleMapping{
			ProjectID:     project.ID,
			AcceptedTagID: project.AcceptedTagID,
			BonusTagID:    project.BonusTagID,
		})
	}
	return mappings, nil
}

func (p *Provider) IsLinked(discordID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return false, err
	}
	return p.linkByDiscordID(discordID) != nil, nil
}

func (p *Provider) GetLinkedIdentity(discordID string) (*phoenix.LinkedIdentity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return nil, err
	}
	link := p.linkByDiscordID(discordID)
	if link == nil {
		return nil, phoenix.ErrNoResultFound
	}
	return &phoenix.LinkedIdentity{
		DiscordID: link.DiscordID,
		UserID:    link.UserID,
		Username:  link.Username,
		LinkedAt:  link.LinkedAt,
	}, nil
}

func (p *Provider) GetMembershipByDiscordID(discordID string) (*phoenix.MembershipRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return nil, err
	}
	link := p.linkByDiscordID(discordID)
	if link == nil {
		return nil, phoenix.ErrNoResultFound
	}
	user := p.userByID(link.UserID)
	if user == nil {
		return nil, phoenix.ErrNoResultFound
	}
	return &phoenix.MembershipRecord{
		UserID:    user.ID,
		Tier:      user.Tier,
		Active:    user.Active,
		UpdatedAt: user.UpdatedAt,
	}, nil
}

func (p *Provider) GetAcceptedProjectGrants(discordID string) ([]phoenix.ProjectGrant, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return nil, err
	}
	link := p.linkByDiscordID(discordID)
	if link == nil {
		return nil, nil
	}
	var grants []phoenix.ProjectGrant
	for _, assignment := range p.data.Assignments {
		if assignment.UserID != link.UserID || assignment.Status != phoenix.AssignmentAccepted {
			continue
		}
		project := p.projectByID(assignment.ProjectID)
		if project == nil {
			continue
		}
		grants = append(grants, phoenix.ProjectGrant{
			AcceptedTagID: project.AcceptedTagID,
			BonusTagID:    project.BonusTagID,
			BonusGrant:    assignment.BonusGrant,
		})
	}
	return grants, nil
}

func (p *Provider) GetChangedDiscordIDs(table phoenix.WatchedTable, since time.Time) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return nil, err
	}

	ids := []string{}
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	switch table {
	case phoenix.WatchedUsers:
		for _, user := range p.data.Users {
			if user.UpdatedAt.After(since) {
				if link := p.linkByUserID(user.ID); link != nil {
					add(link.DiscordID)
				}
			}
		}
	case phoenix.WatchedAssignments:
		for _, assignment := range p.data.Assignments {
			if assignment.UpdatedAt.After(since) {
				if link := p.linkByUserID(assignment.UserID); link != nil {
					add(link.DiscordID)
				}
			}
		}
	case phoenix.WatchedLinks:
		for _, link := range p.data.Links {
			if link.LinkedAt.After(since) {
				add(link.DiscordID)
			}
		}
	default:
		return nil, errors.New("unwatched table '" + string(table) + "'")
	}
	return ids, nil
}

func (p *Provider) GetLatestChange(table phoenix.WatchedTable) (time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ready(); err != nil {
		return time.Time{}, err
	}

	latest := time.Time{}
	switch table {
	case phoenix.WatchedUsers:
		for _, user := range p.data.Users {
			if user.UpdatedAt.After(latest) {
				latest = user.UpdatedAt
			}
		}
	case phoenix.WatchedAssignments:
		for _, assignment := range p.data.Assignments {
			if assignment.UpdatedAt.After(latest) {
				latest = assignment.UpdatedAt
			}
		}
	case phoenix.WatchedLinks:
		for _, link := range p.data.Links {
			if link.LinkedAt.After(latest) {
				latest = link.LinkedAt
			}
		}
	default:
		return time.Time{}, errors.New("unwatched table '" + string(table) + "'")
	}
	return latest, nil
}

func (p *Provider) UpsertSetting(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	p.data.Settings[name] = value
	return nil
}

func (p *Provider) CreateUser(userID, name, email string, tier phoenix.Tier) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	if p.userByID(userID) != nil {
		return nil
	}
	p.data.Users = append(p.data.Users, userRow{
		ID: userID, Name: name, Email: email, Tier: tier, Active: true, UpdatedAt: time.Now().UTC(),
	})
	return nil
}

func (p *Provider) SetUserTier(userID string, tier phoenix.Tier) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	user := p.userByID(userID)
	if user == nil {
		return phoenix.ErrNoResultFound
	}
	user.Tier = tier
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Provider) SetUserActive(userID string, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	user := p.userByID(userID)
	if user == nil {
		return phoenix.ErrNoResultFound
	}
	user.Active = active
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Provider) LinkDiscord(discordID, userID, username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	if link := p.linkByDiscordID(discordID); link != nil {
		link.UserID = userID
		link.Username = username
		link.LinkedAt = time.Now().UTC()
		return nil
	}
	p.data.Links = append(p.data.Links, linkRow{
		DiscordID: discordID, UserID: userID, Username: username, LinkedAt: time.Now().UTC(),
	})
	return nil
}

func (p *Provider) UnlinkDiscord(discordID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	for i := range p.data.Links {
		if p.data.Links[i].DiscordID == discordID {
			p.data.Links = append(p.data.Links[:i], p.data.Links[i+1:]...)
			return nil
		}
	}
	return nil
}

func (p *Provider) CreateProject(projectID, title, acceptedTagID, bonusTagID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	if p.projectByID(projectID) != nil {
		return nil
	}
	p.data.Projects = append(p.data.Projects, projectRow{
		ID: projectID, Title: title, AcceptedTagID: acceptedTagID, BonusTagID: bonusTagID,
	})
	return nil
}

func (p *Provider) SetAssignment(userID, projectID string, status phoenix.AssignmentStatus, grant phoenix.BonusGrant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	for i := range p.data.Assignments {
		if p.data.Assignments[i].UserID == userID && p.data.Assignments[i].ProjectID == projectID {
			p.data.Assignments[i].Status = status
			p.data.Assignments[i].BonusGrant = grant
			p.data.Assignments[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	p.data.Assignments = append(p.data.Assignments, assignmentRow{
		UserID: userID, ProjectID: projectID, Status: status, BonusGrant: grant, UpdatedAt: time.Now().UTC(),
	})
	return nil
}
