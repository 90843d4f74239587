package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/phoenixclub/phoenix-bot/phoenix"
)

const ProviderKey = "jsonfile"

// Provider serves the full store contract from a single JSON snapshot,
// for local development and tests. Writes mutate the in-memory snapshot
// only and are never persisted back to disk.
type Provider struct {
	Path string `json:"path"`

	mu   sync.RWMutex
	data *snapshot
}

type snapshot struct {
	Settings    map[string]string `json:"settings"`
	Users       []userRow         `json:"users"`
	Links       []linkRow         `json:"links"`
	Projects    []projectRow      `json:"projects"`
	Assignments []assignmentRow   `json:"assignments"`
}

type userRow struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Tier      phoenix.Tier `json:"tier"`
	Active    bool         `json:"active"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type linkRow struct {
	DiscordID string    `json:"discordId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	LinkedAt  time.Time `json:"linkedAt"`
}

type projectRow struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	AcceptedTagID string `json:"acceptedTagId"`
	BonusTagID    string `json:"bonusTagId"`
}

type assignmentRow struct {
	UserID     string                   `json:"userId"`
	ProjectID  string                   `json:"projectId"`
	Status     phoenix.AssignmentStatus `json:"status"`
	BonusGrant phoenix.BonusGrant       `json:"bonusGrant"`
	UpdatedAt  time.Time                `json:"updatedAt"`
}

func FromJson(data []byte) (*Provider, error) {
	p := &Provider{}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// NewMemory returns an empty in-memory provider, mainly for tests.
func NewMemory() *Provider {
	return &Provider{data: emptySnapshot()}
}

func emptySnapshot() *snapshot {
	return &snapshot{Settings: map[string]string{}}
}

func (p *Provider) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data != nil {
		return nil
	}
	if p.Path == "" {
		p.data = emptySnapshot()
		return nil
	}

	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return fmt.Errorf("unable to load store snapshot: %w", err)
	}
	loaded := emptySnapshot()
	if err := json.Unmarshal(raw, loaded); err != nil {
		return fmt.Errorf("unable to decode store snapshot: %w", err)
	}
	if loaded.Settings == nil {
		loaded.Settings = map[string]string{}
	}
	p.data = loaded
	return nil
}

func (p *Provider) Close() error {
	return nil
}

func (p *Provider) ready() error {
	if p.data == nil {
		return errors.New("jsonfile provider not connected")
	}
	return nil
}

func (p *Provider) userByID(userID string) *userRow {
	for i := range p.data.Users {
		if p.data.Users[i].ID == userID {
			return &p.data.Users[i]
		}
	}
	return nil
}

func (p *Provider) linkByDiscordID(discordID string) *linkRow {
	for i := range p.data.Links {
		if p.data.Links[i].DiscordID == discordID {
			return &p.data.Links[i]
		}
	}
	return nil
}

func (p *Provider) linkByUserID(userID string) *linkRow {
	for i := range p.data.Links {
		if p.data.Links[i].UserID == userID {
			return &p.data.Links[i]
		}
	}
	return nil
}

func (p *Provider) projectByID(projectID string) *projectRow {
	for i := range p.data.Projects {
		if p.data.Projects[i].ID == projectID {
			return &p.data.Projects[i]
		}
	}
	return nil
}
