package backend

import (
	"fmt"

	"budgetcal/internal/config"
	gsheet "budgetcal/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DatabaseURL:   appConfig.DatabaseURL,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AMQPQueue:     appConfig.AMQPQueue,
	}, nil
}

// SheetsConfig extracts the spreadsheet export settings.
func SheetsConfig(appConfig *config.Config) gsheet.Config {
	return gsheet.Config{
		SpreadsheetID:      appConfig.GoogleSpreadsheetID,
		SheetName:          appConfig.GoogleSheetName,
		OAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		OAuthClientFile:    appConfig.GoogleOAuthClientFile,
		OAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
		OAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		ServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}
}
