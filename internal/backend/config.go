package backend

import (
	"errors"
	"fmt"

	"rewards/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:            backendType,
		APIURL:          appConfig.RewardsAPIURL,
		APITimeout:      appConfig.RewardsAPITimeout,
		RecordCacheSize: appConfig.RecordCacheSize,
		RecordCacheTTL:  appConfig.RecordCacheTTL,
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		DataDirectory:   appConfig.DataDirectory,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case APIBackend:
		if c.APIURL == "" {
			return errors.New("rewards API URL is required for api backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"
	}

	return nil
}

func GetBackendTypes() []BackendType {
	return []BackendType{APIBackend, MemoryBackend, SQLiteBackend}
}
