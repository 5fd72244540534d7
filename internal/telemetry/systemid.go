package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tkoskin/headsup/internal/conf"
)

// systemIDFile is stored alongside the configuration so the identifier
// survives upgrades but never leaves the machine except as a tag.
const systemIDFile = ".system_id"

// GenerateSystemID creates an anonymous install identifier, formatted
// XXXX-XXXX-XXXX for readability.
func GenerateSystemID() (string, error) {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	id := hex.EncodeToString(bytes)
	return strings.ToUpper(fmt.Sprintf("%s-%s-%s", id[0:4], id[4:8], id[8:12])), nil
}

// LoadOrCreateSystemID returns the persistent install identifier from
// configDir, creating and saving a fresh one on first use.
func LoadOrCreateSystemID(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	idFile := filepath.Join(configDir, systemIDFile)
	if data, err := os.ReadFile(idFile); err == nil {
		id := strings.TrimSpace(string(data))
		if IsValidSystemID(id) {
			return id, nil
		}
	}

	id, err := GenerateSystemID()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(idFile, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("failed to save system ID: %w", err)
	}
	return id, nil
}

// IsValidSystemID checks the XXXX-XXXX-XXXX format.
func IsValidSystemID(id string) bool {
	if len(id) != 14 || id[4] != '-' || id[9] != '-' {
		return false
	}
	for i, r := range id {
		if i == 4 || i == 9 {
			continue
		}
		if !isHexChar(r) {
			return false
		}
	}
	return true
}

func isHexChar(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}

// ensureSystemID resolves the install identifier for scope tagging.
// Failures fall back to an ephemeral ID rather than blocking startup.
func ensureSystemID() string {
	if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 0 {
		if id, err := LoadOrCreateSystemID(paths[0]); err == nil {
			return id
		}
	}

	id, err := GenerateSystemID()
	if err != nil {
		return "unknown"
	}
	return id
}
