package autosync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phoenixclub/phoenix-bot/phoenix"
	"github.com/phoenixclub/phoenix-bot/rolesync"
	"github.com/phoenixclub/phoenix-bot/storage"
	"github.com/phoenixclub/phoenix-bot/storage/jsonfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRoles struct {
	mu    sync.Mutex
	roles map[string]phoenix.RoleSet
}

func newStubRoles() *stubRoles {
	return &stubRoles{roles: map[string]phoenix.RoleSet{}}
}

func (s *stubRoles) held(userID string) phoenix.RoleSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := phoenix.RoleSet{}
	for id := range s.roles[userID] {
		held.Add(id)
	}
	return held
}

func (s *stubRoles) MemberRoles(_ context.Context, _, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[userID]; !ok {
		s.roles[userID] = phoenix.RoleSet{}
	}
	return s.roles[userID].Slice(), nil
}

func (s *stubRoles) AddRoles(_ context.Context, _, userID string, roleIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range roleIDs {
		s.roles[userID].Add(id)
	}
	return nil
}

func (s *stubRoles) RemoveRoles(_ context.Context, _, userID string, roleIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range roleIDs {
		delete(s.roles[userID], id)
	}
	return nil
}

func (s *stubRoles) Members(_ context.Context, _ string) ([]rolesync.GuildMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := []rolesync.GuildMember{}
	for id := range s.roles {
		members = append(members, rolesync.GuildMember{ID: id})
	}
	return members, nil
}

func newTestStore(t *testing.T) *jsonfile.Provider {
	t.Helper()
	store := jsonfile.NewMemory()
	for name, value := range map[string]string{
		phoenix.SettingGuildID:        "guild-1",
		phoenix.SettingMemberRoleID:   "role-member",
		phoenix.SettingCoLeaderRoleID: "role-colead",
		phoenix.SettingLeaderRoleID:   "role-leader",
	} {
		require.NoError(t, store.UpsertSetting(name, value))
	}
	return store
}

func newTestPoller(store storage.Provider, roles rolesync.RoleManager) *Poller {
	svc := rolesync.New(store, roles, zap.NewNop())
	svc.Pacing = 0
	p := New(store, svc, zap.NewNop())
	p.Pacing = 0
	return p
}

func TestStart_RequiresGuildID(t *testing.T) {
	store := jsonfile.NewMemory()
	p := newTestPoller(store, newStubRoles())

	err := p.Start(context.Background())
	require.Error(t, err)
	assert.False(t, p.Status().IsRunning)
}

func TestStartStop_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	p := newTestPoller(store, newStubRoles())
	p.Interval = time.Hour

	require.NoError(t, p.Start(context.Background()))
	status := p.Status()
	assert.True(t, status.IsRunning)
	assert.Equal(t, "guild-1", status.GuildID)
	assert.Len(t, status.LastCheckTimestamps, len(phoenix.WatchedTables()))

	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyRunning)

	p.Stop()
	assert.False(t, p.Status().IsRunning)
	p.Stop()
}

func TestCheckForChanges_SyncsAffectedMembers(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierLeader))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))

	roles := newStubRoles()
	p := newTestPoller(store, roles)
	p.guildID = "guild-1"
	p.checkpoints = map[phoenix.WatchedTable]time.Time{}
	past := time.Now().UTC().Add(-time.Hour)
	for _, table := range phoenix.WatchedTables() {
		p.checkpoints[table] = past
	}

	p.checkForChanges(context.Background())

	assert.True(t, roles.held("d1").Has("role-leader"))
	for _, table := range []phoenix.WatchedTable{phoenix.WatchedUsers, phoenix.WatchedLinks} {
		assert.True(t, p.checkpoints[table].After(past),
			"checkpoint for %s should advance after rows were found", table)
	}
}

func TestCheckForChanges_NoRowsLeavesCheckpoints(t *testing.T) {
	store := newTestStore(t)
	p := newTestPoller(store, newStubRoles())
	p.guildID = "guild-1"
	p.checkpoints = map[phoenix.WatchedTable]time.Time{}
	future := time.Now().UTC().Add(time.Hour)
	for _, table := range phoenix.WatchedTables() {
		p.checkpoints[table] = future
	}

	p.checkForChanges(context.Background())

	for _, table := range phoenix.WatchedTables() {
		assert.Equal(t, future, p.checkpoints[table])
	}
}

type failingScanStore struct {
	storage.Provider
}

func (f failingScanStore) GetChangedDiscordIDs(phoenix.WatchedTable, time.Time) ([]string, error) {
	return nil, errors.New("store unavailable")
}

func TestCheckForChanges_FailedScanRetainsWindow(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierMember))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))

	roles := newStubRoles()
	p := newTestPoller(failingScanStore{store}, roles)
	p.guildID = "guild-1"
	p.checkpoints = map[phoenix.WatchedTable]time.Time{}
	past := time.Now().UTC().Add(-time.Hour)
	for _, table := range phoenix.WatchedTables() {
		p.checkpoints[table] = past
	}

	p.checkForChanges(context.Background())

	// Every scan failed, so no member was touched and every window is kept
	// for the next tick.
	assert.Empty(t, roles.held("d1").Slice())
	for _, table := range phoenix.WatchedTables() {
		assert.Equal(t, past, p.checkpoints[table])
	}
}
