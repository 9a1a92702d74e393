package setting

import (
	"context"
	"fmt"
	"log"

	"github.com/igolaizola/sunogen/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Account string
	Value   string
	Delete  bool
	List    bool
}

// Run manages the API keys stored in the settings table: set one for an
// account, delete one, or list the stored entries.
func Run(ctx context.Context, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("setting: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("setting: couldn't start orm store: %w", err)
	}

	if cfg.List {
		settings, err := store.ListSettings(ctx, 1, 100)
		if err != nil {
			return fmt.Errorf("setting: couldn't list settings: %w", err)
		}
		for _, s := range settings {
			log.Printf("%s (updated %s)\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	}

	if cfg.Account == "" {
		return fmt.Errorf("setting: account is empty")
	}
	secrets := store.NewSecretStore("suno", cfg.Account)

	if cfg.Delete {
		if err := secrets.DeleteSecret(ctx); err != nil {
			return fmt.Errorf("setting: couldn't delete api key: %w", err)
		}
		return nil
	}

	if cfg.Value == "" {
		return fmt.Errorf("setting: value is empty")
	}
	if err := secrets.SetSecret(ctx, cfg.Value); err != nil {
		return fmt.Errorf("setting: couldn't save api key: %w", err)
	}
	return nil
}
