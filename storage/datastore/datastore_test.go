package datastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/phoenixclub/phoenix-bot/phoenix"
)

type fakeClient struct {
	entities map[string]any
	getAll   func(q *datastore.Query, dst interface{}) ([]*datastore.Key, error)
}

func newFakeClient() *fakeClient {
	return &fakeClient{entities: map[string]any{}}
}

func entityKey(key *datastore.Key) string {
	return key.Kind + "/" + key.Name
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Get(_ context.Context, key *datastore.Key, dst interface{}) error {
	stored, ok := f.entities[entityKey(key)]
	if !ok {
		return datastore.ErrNoSuchEntity
	}
	switch d := dst.(type) {
	case *settingStore:
		*d = stored.(settingStore)
	case *linkStore:
		*d = stored.(linkStore)
	default:
		return errors.New("unexpected dst")
	}
	return nil
}

func (f *fakeClient) Put(_ context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error) {
	switch s := src.(type) {
	case *settingStore:
		f.entities[entityKey(key)] = *s
	case *linkStore:
		f.entities[entityKey(key)] = *s
	case *userStore:
		f.entities[entityKey(key)] = *s
	case *assignmentStore:
		f.entities[entityKey(key)] = *s
	default:
		return nil, errors.New("unexpected src")
	}
	return key, nil
}

func (f *fakeClient) Delete(_ context.Context, key *datastore.Key) error {
	delete(f.entities, entityKey(key))
	return nil
}

func (f *fakeClient) GetAll(_ context.Context, q *datastore.Query, dst interface{}) ([]*datastore.Key, error) {
	if f.getAll == nil {
		return nil, nil
	}
	return f.getAll(q, dst)
}

func TestSettingsRoundTrip(t *testing.T) {
	client := newFakeClient()
	p := &Provider{client: client}

	if _, err := p.GetSetting(phoenix.SettingGuildID); err != phoenix.ErrNoResultFound {
		t.Errorf("expected ErrNoResultFound, received %v", err)
	}

	if err := p.UpsertSetting(phoenix.SettingGuildID, "guild-1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	value, err := p.GetSetting(phoenix.SettingGuildID)
	if err != nil || value != "guild-1" {
		t.Errorf("expected guild-1, received %q (%v)", value, err)
	}
}

func TestLinkLifecycle(t *testing.T) {
	client := newFakeClient()
	p := &Provider{client: client}

	linked, err := p.IsLinked("d1")
	if err != nil || linked {
		t.Errorf("expected unlinked, received %v (%v)", linked, err)
	}

	if err := p.LinkDiscord("d1", "u1", "ana#1"); err != nil {
		t.Fatalf("link: %v", err)
	}
	linked, err = p.IsLinked("d1")
	if err != nil || !linked {
		t.Errorf("expected linked, received %v (%v)", linked, err)
	}

	if err := p.UnlinkDiscord("d1"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if linked, _ := p.IsLinked("d1"); linked {
		t.Error("expected unlinked after delete")
	}
}

func TestChangedDiscordIDsFromKeys(t *testing.T) {
	client := newFakeClient()
	client.getAll = func(q *datastore.Query, dst interface{}) ([]*datastore.Key, error) {
		return []*datastore.Key{
			datastore.NameKey(kindLink, "d1", nil),
			datastore.NameKey(kindLink, "d2", nil),
			datastore.NameKey(kindLink, "d1", nil),
		}, nil
	}
	p := &Provider{client: client}

	ids, err := p.GetChangedDiscordIDs(phoenix.WatchedLinks, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("changed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected deduplicated ids, received %v", ids)
	}

	if _, err := p.GetChangedDiscordIDs(phoenix.WatchedTable("mystery"), time.Now()); err == nil {
		t.Error("expected error for unwatched table")
	}
}

func TestChangedDiscordIDsQueryError(t *testing.T) {
	client := newFakeClient()
	client.getAll = func(q *datastore.Query, dst interface{}) ([]*datastore.Key, error) {
		return nil, errors.New("backend unavailable")
	}
	p := &Provider{client: client}

	if _, err := p.GetChangedDiscordIDs(phoenix.WatchedLinks, time.Now()); err == nil {
		t.Error("expected query error to surface")
	}
}
