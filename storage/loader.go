package storage

import (
	"encoding/json"
	"errors"

	"github.com/phoenixclub/phoenix-bot/storage/jsonfile"
	"github.com/phoenixclub/phoenix-bot/storage/sql"
)

func Load(jsonBytes []byte) (Provider, error) {

	loader := struct {
		Provider      string
		Configuration *json.RawMessage
	}{}

	err := json.Unmarshal(jsonBytes, &loader)
	if err != nil {
		return nil, err
	}

	switch loader.Provider {
	case sql.ProviderKey:
		return sql.FromJson(*loader.Configuration)
	case jsonfile.ProviderKey:
		return jsonfile.FromJson(*loader.Configuration)
	}

	return nil, errors.New("unable to load storage provider '" + loader.Provider + "'")
}
