package datastore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/phoenixclub/phoenix-bot/phoenix"
)

func (p *Provider) GetSetting(name string) (string, error) {
	located := settingStore{}
	err := p.client.Get(context.Background(), settingStore{Name: name}.dsID(), &located)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return "", phoenix.ErrNoResultFound
	}
	if err != nil {
		return "", err
	}
	return located.Value, nil
}

func (p *Provider) UpsertSetting(name, value string) error {
	setting := settingStore{Name: name, Value: value}
	_, err := p.client.Put(context.Background(), setting.dsID(), &setting)
	return err
}

func (p *Provider) IsLinked(discordID string) (bool, error) {
	located := linkStore{}
	err := p.client.Get(context.Background(), linkStore{DiscordID: discordID}.dsID(), &located)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return false, nil
	}
	return err == nil, err
}

func (p *Provider) LinkDiscord(discordID, userID, username string) error {
	link := linkStore{DiscordID: discordID, UserID: userID, Username: username, LinkedAt: time.Now().UTC()}
	_, err := p.client.Put(context.Background(), link.dsID(), &link)
	return err
}

func (p *Provider) UnlinkDiscord(discordID string) error {
	return p.client.Delete(context.Background(), linkStore{DiscordID: discordID}.dsID())
}

func (p *Provider) StoreMemberState(userID string, tier phoenix.Tier, active bool) error {
	user := userStore{UserID: userID, Tier: string(tier), Active: active, UpdatedAt: time.Now().UTC()}
	_, err := p.client.Put(context.Background(), user.dsID(), &user)
	return err
}

func (p *Provider) StoreAssignment(userID, projectID string, status phoenix.AssignmentStatus, grant phoenix.BonusGrant) error {
	assignment := assignmentStore{
		UserID:     userID,
		ProjectID:  projectID,
		Status:     string(status),
		BonusGrant: string(grant),
		UpdatedAt:  time.Now().UTC(),
	}
	_, err := p.client.Put(context.Background(), assignment.dsID(), &assignment)
	return err
}

func (p *Provider) discordIDForUser(userID string) (string, error) {
	q := datastore.NewQuery(kindLink).
		FilterField("UserID", "=", userID).
		Limit(1).KeysOnly()

	keys, err := p.client.GetAll(context.Background(), q, nil)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[0].Name, nil
}

func (p *Provider) GetChangedDiscordIDs(table phoenix.WatchedTable, since time.Time) ([]string, error) {
	ids := []string{}
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	switch table {
	case phoenix.WatchedLinks:
		q := datastore.NewQuery(kindLink).
			FilterField("LinkedAt", ">", since).KeysOnly()
		keys, err := p.client.GetAll(context.Background(), q, nil)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			add(key.Name)
		}

	case phoenix.WatchedUsers:
		q := datastore.NewQuery(kindUser).
			FilterField("UpdatedAt", ">", since).KeysOnly()
		keys, err := p.client.GetAll(context.Background(), q, nil)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			discordID, err := p.discordIDForUser(key.Name)
			if err != nil {
				return nil, err
			}
			add(discordID)
		}

	case phoenix.WatchedAssignments:
		var rows []assignmentStore
		q := datastore.NewQuery(kindAssignment).
			FilterField("UpdatedAt", ">", since)
		if _, err := p.client.GetAll(context.Background(), q, &rows); err != nil {
			return nil, err
		}
		for _, row := range rows {
			discordID, err := p.discordIDForUser(row.UserID)
			if err != nil {
				return nil, err
			}
			add(discordID)
		}

	default:
		return nil, errors.New("unwatched table '" + string(table) + "'")
	}
	return ids, nil
}

func (p *Provider) GetLatestChange(table phoenix.WatchedTable) (time.Time, error) {
	var field, kind string
	switch table {
	case phoenix.WatchedLinks:
		kind, field = kindLink, "LinkedAt"
	case phoenix.WatchedUsers:
		kind, field = kindUser, "UpdatedAt"
	case phoenix.WatchedAssignments:
		kind, field = kindAssignment, "UpdatedAt"
	default:
		return time.Time{}, errors.New("unwatched table '" + string(table) + "'")
	}

	q := datastore.NewQuery(kind).Order("-" + field).Limit(1)
	switch kind {
	case kindLink:
		var rows []linkStore
		if _, err := p.client.GetAll(context.Background(), q, &rows); err != nil {
			return time.Time{}, err
		}
		if len(rows) > 0 {
			return rows[0].LinkedAt, nil
		}
	case kindUser:
		var rows []userStore
		if _, err := p.client.GetAll(context.Background(), q, &rows); err != nil {
			return time.Time{}, err
		}
		if len(rows) > 0 {
			return rows[0].UpdatedAt, nil
		}
	case kindAssignment:
		var rows []assignmentStore
		if _, err := p.client.GetAll(context.Background(), q, &rows); err != nil {
			return time.Time{}, err
		}
		if len(rows) > 0 {
			return rows[0].UpdatedAt, nil
		}
	}
	return time.Time{}, nil
}
