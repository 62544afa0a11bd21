package backend

import (
	"fmt"
	"strings"

	"caja/internal/config"
)

// FromAppConfig derives the journal backend from the application config.
// A configured spreadsheet selects Google Sheets; otherwise the journal is
// kept in memory.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{Type: MemoryBackend}
	if strings.TrimSpace(appConfig.GoogleSpreadsheetID) != "" {
		cfg = Config{
			Type:                SheetsBackend,
			GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
			GoogleJournalSheet:  appConfig.GoogleJournalSheet,
		}
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	if c.Type == SheetsBackend {
		if strings.TrimSpace(c.GoogleSpreadsheetID) == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if strings.TrimSpace(c.GoogleJournalSheet) == "" {
			return fmt.Errorf("Google journal sheet name is required for sheets backend")
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SheetsBackend, MemoryBackend}
}
