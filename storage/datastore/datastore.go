package datastore

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
)

const ProviderKey = "datastore"

const (
	kindSetting    = "PxSetting"
	kindLink       = "PxDiscordLink"
	kindUser       = "PxUser"
	kindAssignment = "PxAssignment"
)

// Provider is a partial Datastore-backed mirror of the store contract,
// covering the settings, link and change-detection reads the sync services
// need. It is used directly rather than through storage.Load.
type Provider struct {
	client    dataStoreClient
	ProjectID string `json:"projectId"`
}

func FromJson(data []byte) (*Provider, error) {
	p := &Provider{}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := p.Init(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Init() error {
	var err error
	p.client, err = datastore.NewClient(context.Background(), p.ProjectID,
		option.WithGRPCDialOption(grpc.WithReturnConnectionError()),
		option.WithGRPCDialOption(grpc.WithTimeout(time.Second*5)),
		option.WithGRPCDialOption(grpc.WithDisableRetry()))
	return err
}

func (p *Provider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

type settingStore struct {
	Name  string
	Value string `datastore:",noindex"`
}

func (s settingStore) dsID() *datastore.Key {
	return datastore.NameKey(kindSetting, s.Name, nil)
}

type linkStore struct {
	DiscordID string
	UserID    string
	Username  string
	LinkedAt  time.Time
}

func (l linkStore) dsID() *datastore.Key {
	return datastore.NameKey(kindLink, l.DiscordID, nil)
}

type userStore struct {
	UserID    string
	Tier      string
	Active    bool
	UpdatedAt time.Time
}

func (u userStore) dsID() *datastore.Key {
	return datastore.NameKey(kindUser, u.UserID, nil)
}

type assignmentStore struct {
	UserID     string
	ProjectID  string
	Status     string
	BonusGrant string
	UpdatedAt  time.Time
}

func (a assignmentStore) dsID() *datastore.Key {
	return datastore.NameKey(kindAssignment, a.UserID+"/"+a.ProjectID, nil)
}

type dataStoreClient interface {
	io.Closer
	Get(ctx context.Context, key *datastore.Key, dst interface{}) (err error)
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
	Delete(ctx context.Context, key *datastore.Key) error
	GetAll(ctx context.Context, q *datastore.Query, dst interface{}) (keys []*datastore.Key, err error)
}
