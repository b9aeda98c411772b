package config

import (
	"os"
	"path/filepath"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "wqlbridge.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "wqlbridge.yml"

// FindConfigFile returns the config file in dir, or "" if there is none.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindConfigUpward walks up from startDir, at most maxLevels directories,
// looking for a config file.
func FindConfigUpward(startDir string, maxLevels int) string {
	dir := startDir
	for range maxLevels {
		if path := FindConfigFile(dir); path != "" {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
