package rolesync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/phoenixclub/phoenix-bot/phoenix"
	"github.com/phoenixclub/phoenix-bot/storage"
	"github.com/phoenixclub/phoenix-bot/storage/jsonfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRoles struct {
	mu          sync.Mutex
	roles       map[string]phoenix.RoleSet
	bots        map[string]bool
	failFetch   map[string]bool
	addCalls    int
	removeCalls int
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{
		roles:     map[string]phoenix.RoleSet{},
		bots:      map[string]bool{},
		failFetch: map[string]bool{},
	}
}

func (f *fakeRoles) setRoles(userID string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = phoenix.NewRoleSet(ids...)
}

func (f *fakeRoles) held(userID string) phoenix.RoleSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	held := phoenix.RoleSet{}
	for id := range f.roles[userID] {
		held.Add(id)
	}
	return held
}

func (f *fakeRoles) MemberRoles(_ context.Context, _, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch[userID] {
		return nil, errors.New("member not found")
	}
	if _, ok := f.roles[userID]; !ok {
		f.roles[userID] = phoenix.RoleSet{}
	}
	return f.roles[userID].Slice(), nil
}

func (f *fakeRoles) AddRoles(_ context.Context, _, userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	for _, id := range roleIDs {
		f.roles[userID].Add(id)
	}
	return nil
}

func (f *fakeRoles) RemoveRoles(_ context.Context, _, userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	for _, id := range roleIDs {
		delete(f.roles[userID], id)
	}
	return nil
}

func (f *fakeRoles) Members(_ context.Context, _ string) ([]GuildMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := []GuildMember{}
	for id := range f.roles {
		members = append(members, GuildMember{ID: id, Bot: f.bots[id]})
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
	require.NoError(t, store.CreateProject("p1", "Robotics", "role-p1", "role-p1-bonus"))
	require.NoError(t, store.CreateProject("p2", "Web", "role-p2", ""))
	return store
}

func newTestService(store storage.Provider, roles RoleManager) *Service {
	svc := New(store, roles, zap.NewNop())
	svc.Pacing = 0
	return svc
}

func TestSyncMember_UnlinkedLosesManagedTags(t *testing.T) {
	store := newTestStore(t)
	roles := newFakeRoles()
	roles.setRoles("d1", "role-p1", "role-member", "booster")

	svc := newTestService(store, roles)
	result := svc.SyncMember(context.Background(), "guild-1", "d1")

	require.True(t, result.Success)
	assert.Equal(t, ActionRemovedAll, result.Action)
	assert.Equal(t, 2, result.Removed)

	held := roles.held("d1")
	assert.False(t, held.Has("role-p1"))
	assert.False(t, held.Has("role-member"))
	assert.True(t, held.Has("booster"))
}

func TestSyncMember_LinkedGetsDesiredTags(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierLeader))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))
	require.NoError(t, store.SetAssignment("u1", "p1", phoenix.AssignmentAccepted, phoenix.BonusGrantReceived))

	roles := newFakeRoles()
	svc := newTestService(store, roles)

	result := svc.SyncMember(context.Background(), "guild-1", "d1")
	require.True(t, result.Success)
	assert.Equal(t, ActionSynced, result.Action)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 1, roles.addCalls, "additions must be one batched call")

	held := roles.held("d1")
	assert.True(t, held.Has("role-p1"))
	assert.True(t, held.Has("role-p1-bonus"))
	assert.True(t, held.Has("role-leader"))

	// Second pass with no state change is a no-op.
	result = svc.SyncMember(context.Background(), "guild-1", "d1")
	require.True(t, result.Success)
	assert.Equal(t, ActionNoop, result.Action)
	assert.Zero(t, result.Added)
	assert.Zero(t, result.Removed)
	assert.Equal(t, 1, roles.addCalls)
}

func TestSyncMember_AppliedBonusDoesNotGrantBonusTag(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierLeader))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))
	require.NoError(t, store.SetAssignment("u1", "p1", phoenix.AssignmentAccepted, phoenix.BonusGrantApplied))

	roles := newFakeRoles()
	svc := newTestService(store, roles)

	result := svc.SyncMember(context.Background(), "guild-1", "d1")
	require.True(t, result.Success)

	held := roles.held("d1")
	assert.True(t, held.Has("role-p1"))
	assert.False(t, held.Has("role-p1-bonus"))
	assert.True(t, held.Has("role-leader"))
}

func TestSyncMember_TierChangeSwapsTags(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierMember))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))

	roles := newFakeRoles()
	svc := newTestService(store, roles)

	result := svc.SyncMember(context.Background(), "guild-1", "d1")
	require.True(t, result.Success)
	assert.True(t, roles.held("d1").Has("role-member"))

	require.NoError(t, store.SetUserTier("u1", phoenix.TierLeader))

	result = svc.SyncMember(context.Background(), "guild-1", "d1")
	require.True(t, result.Success)
	assert.Equal(t, ActionSynced, result.Action)
	assert.Equal(t, 1, result.Detail.Membership.Added)
	assert.Equal(t, 1, result.Detail.Membership.Removed)

	held := roles.held("d1")
	assert.True(t, held.Has("role-leader"))
	assert.False(t, held.Has("role-member"), "member and leader tags must never coexist after sync")
}

func TestSyncMember_InactiveMemberKeepsProjectTagsOnly(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierMember))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))
	require.NoError(t, store.SetAssignment("u1", "p2", phoenix.AssignmentAccepted, phoenix.BonusGrantNone))
	require.NoError(t, store.SetUserActive("u1", false))

	roles := newFakeRoles()
	roles.setRoles("d1", "role-member")
	svc := newTestService(store, roles)

	result := svc.SyncMember(context.Background(), "guild-1", "d1")
	require.True(t, result.Success)

	held := roles.held("d1")
	assert.True(t, held.Has("role-p2"))
	assert.False(t, held.Has("role-member"))
}

type failingStore struct {
	storage.Provider
}

func (f failingStore) GetAcceptedProjectGrants(string) ([]phoenix.ProjectGrant, error) {
	return nil, errors.New("store unavailable")
}

func TestSyncMember_FailOpenTreatsStoreErrorAsEmpty(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierLeader))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))

	roles := newFakeRoles()
	roles.setRoles("d1", "role-leader")
	svc := newTestService(failingStore{store}, roles)

	result := svc.SyncMember(context.Background(), "guild-1", "d1")
	require.True(t, result.Success)
	assert.Equal(t, ActionNoop, result.Action)
	assert.True(t, roles.held("d1").Has("role-leader"))
}

func TestSyncMember_StrictModeSurfacesStoreError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierLeader))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))

	roles := newFakeRoles()
	svc := newTestService(failingStore{store}, roles)
	svc.FailOpen = false

	result := svc.SyncMember(context.Background(), "guild-1", "d1")
	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}

func TestSyncAll_SkipsBotsAndSurvivesFailures(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("u1", "Ana", "ana@example.com", phoenix.TierMember))
	require.NoError(t, store.LinkDiscord("d1", "u1", "ana#1"))

	roles := newFakeRoles()
	roles.setRoles("d1")
	roles.setRoles("d2", "role-member")
	roles.setRoles("bot1")
	roles.setRoles("broken")
	roles.bots["bot1"] = true
	roles.failFetch["broken"] = true

	svc := newTestService(store, roles)
	summary, err := svc.SyncAll(context.Background(), "guild-1")
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorCount)

	// d2 was not linked, so its membership tag is gone.
	assert.False(t, roles.held("d2").Has("role-member"))
}
