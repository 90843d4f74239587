// Package discord adapts a discordgo session to the role operations the
// sync engine needs.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/phoenixclub/phoenix-bot/phoenix"
	"github.com/phoenixclub/phoenix-bot/rolesync"
)

const memberPageSize = 1000

// Client wraps an authenticated discordgo session. It satisfies
// rolesync.RoleManager; role batches are applied as a single member edit
// per direction so each sync costs at most two API calls.
type Client struct {
	session *discordgo.Session
}

func New(botToken string) (*Client, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("unable to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return &Client{session: session}, nil
}

// NewWithSession is used by tests and callers that manage their own session.
func NewWithSession(session *discordgo.Session) *Client {
	return &Client{session: session}
}

func (c *Client) Open() error {
	return c.session.Open()
}

func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	member, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("unable to fetch guild member: %w", err)
	}
	return member.Roles, nil
}

// AddRoles applies every addition in one member edit by submitting the full
// resulting role list.
func (c *Client) AddRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	current, err := c.MemberRoles(ctx, guildID, userID)
	if err != nil {
		return err
	}
	merged := phoenix.NewRoleSet(current...).Union(phoenix.NewRoleSet(roleIDs...))
	return c.editRoles(ctx, guildID, userID, merged.Slice())
}

// RemoveRoles strips every given role in one member edit.
func (c *Client) RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	current, err := c.MemberRoles(ctx, guildID, userID)
	if err != nil {
		return err
	}
	remaining := phoenix.NewRoleSet(current...).Diff(phoenix.NewRoleSet(roleIDs...))
	return c.editRoles(ctx, guildID, userID, remaining.Slice())
}

func (c *Client) editRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	_, err := c.session.GuildMemberEdit(guildID, userID,
		&discordgo.GuildMemberParams{Roles: &roleIDs},
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("unable to edit member roles: %w", err)
	}
	return nil
}

// Members pages through the full guild member list.
func (c *Client) Members(ctx context.Context, guildID string) ([]rolesync.GuildMember, error) {
	members := []rolesync.GuildMember{}
	after := ""

	for {
		page, err := c.session.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("unable to list guild members: %w", err)
		}
		if len(page) == 0 {
			return members, nil
		}

		for _, member := range page {
			bot := member.User != nil && member.User.Bot
			id := ""
			if member.User != nil {
				id = member.User.ID
			}
			members = append(members, rolesync.GuildMember{ID: id, Bot: bot})
			after = id
		}

		if len(page) < memberPageSize {
			return members, nil
		}
	}
}

// GuildRoles returns the guild's roles keyed by name.
func (c *Client) GuildRoles(ctx context.Context, guildID string) (map[string]*discordgo.Role, error) {
	roles, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("unable to list guild roles: %w", err)
	}
	byName := make(map[string]*discordgo.Role, len(roles))
	for _, role := range roles {
		byName[role.Name] = role
	}
	return byName, nil
}

// EnsureRole returns the id of the named role, creating it with the given
// color when it does not exist yet.
func (c *Client) EnsureRole(ctx context.Context, guildID, name string, color int) (string, error) {
	existing, err := c.GuildRoles(ctx, guildID)
	if err != nil {
		return "", err
	}
	if role, ok := existing[name]; ok {
		return role.ID, nil
	}

	role, err := c.session.GuildRoleCreate(guildID,
		&discordgo.RoleParams{Name: name, Color: &color},
		discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("unable to create role %q: %w", name, err)
	}
	return role.ID, nil
}
