package reconcile

import (
	"fmt"
	"path/filepath"
	"strings"

	"audiomirror/internal/config"
	"audiomirror/internal/filecache"
	"audiomirror/internal/pathmatch"
)

// Settings is the static configuration shared by every file in a run.
type Settings struct {
	SourceDir      string
	DestinationDir string
	Matcher        *pathmatch.Matcher
	Format         string
	BitrateKbps    int
	CopyMode       bool
}

// SettingsFromConfig derives run settings from a validated config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		SourceDir:      cfg.Paths.SourceDir,
		DestinationDir: cfg.Paths.DestinationDir,
		Matcher:        pathmatch.New(cfg.Transcode.AllowedExtensions, cfg.Transcode.IgnoredExtensions),
		Format:         cfg.TargetExtension(),
		BitrateKbps:    cfg.Transcode.BitrateKbps,
		CopyMode:       cfg.Passthrough.Copy,
	}
}

// Classify applies the extension rules to path.
func (s Settings) Classify(path string) pathmatch.Kind {
	if s.Matcher == nil {
		return pathmatch.Passthrough
	}
	return s.Matcher.Classify(path)
}

// ConfigTag is the processing tag for files of the given kind.
func (s Settings) ConfigTag(kind pathmatch.Kind) string {
	if kind == pathmatch.Transcode {
		return fmt.Sprintf("%s:%d", s.Format, s.BitrateKbps)
	}
	return filecache.PassthroughTag
}

// Destination re-roots src under the destination tree. The extension is
// replaced with the target format only for transcoded files.
func (s Settings) Destination(src string, kind pathmatch.Kind) (string, error) {
	rel, err := filepath.Rel(s.SourceDir, src)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", src, s.SourceDir)
	}
	dst := filepath.Join(s.DestinationDir, rel)
	if kind == pathmatch.Transcode {
		dst = strings.TrimSuffix(dst, filepath.Ext(dst)) + "." + s.Format
	}
	return dst, nil
}
