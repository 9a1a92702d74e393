package storage

import (
	"context"
	"fmt"
)

// NewSecretStore adapts the settings table to a secret store for a
// service credential, keyed as <service>/<account>/api-key.
func (s *Store) NewSecretStore(service, account string) *secretStore {
	return &secretStore{
		store:   s,
		service: service,
		account: account,
	}
}

type secretStore struct {
	store   *Store
	service string
	account string
}

func (c *secretStore) id() string {
	return fmt.Sprintf("%s/%s/api-key", c.service, c.account)
}

func (c *secretStore) Secret(ctx context.Context) (string, error) {
	setting, err := c.store.GetSetting(ctx, c.id())
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (c *secretStore) SetSecret(ctx context.Context, value string) error {
	return c.store.SetSetting(ctx, &Setting{
		ID:    c.id(),
		Value: value,
	})
}

func (c *secretStore) DeleteSecret(ctx context.Context) error {
	return c.store.DeleteSetting(ctx, c.id())
}
