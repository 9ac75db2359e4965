package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Validate ensures the configuration is usable. It checks shape and the
// filesystem layout; binary and permission checks live in preflight.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if c.Workers.Count < 0 {
		return errors.New("workers.count must be >= 0")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.SourceDir == "" {
		return errors.New("paths.source_dir is required (or pass --source)")
	}
	if c.Paths.DestinationDir == "" {
		return errors.New("paths.destination_dir is required (or pass --destination)")
	}
	if err := ensureDirectory("paths.source_dir", c.Paths.SourceDir); err != nil {
		return err
	}
	if err := ensureDirectory("paths.destination_dir", c.Paths.DestinationDir); err != nil {
		return err
	}
	source := resolveLinks(c.Paths.SourceDir)
	destination := resolveLinks(c.Paths.DestinationDir)
	if source == destination {
		return errors.New("paths.source_dir and paths.destination_dir must be different directories")
	}
	if isWithin(destination, source) || isWithin(source, destination) {
		return errors.New("paths.source_dir and paths.destination_dir must not be nested inside each other")
	}
	database := filepath.Join(resolveLinks(filepath.Dir(c.Paths.DatabasePath)), filepath.Base(c.Paths.DatabasePath))
	if isWithin(database, destination) {
		return errors.New("paths.database_path cannot be located inside the destination directory")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if len(c.Transcode.AllowedExtensions) == 0 {
		return errors.New("transcode.allowed_extensions must include at least one extension (e.g. -a flac)")
	}
	if c.Transcode.Format == "" {
		return errors.New("transcode.format must be set")
	}
	for _, r := range c.Transcode.Format {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("invalid transcode.format %q, must be alphanumeric", c.Transcode.Format)
		}
	}
	if c.Transcode.BitrateKbps <= 0 {
		return errors.New("transcode.bitrate_kbps must be positive")
	}
	return nil
}

func ensureDirectory(key, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s %s does not exist", key, path)
		}
		return fmt.Errorf("%s: stat %s: %w", key, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s %s must be a directory", key, path)
	}
	return nil
}

// resolveLinks canonicalizes path when possible so symlinked layouts cannot
// hide the database inside the destination tree.
func resolveLinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
