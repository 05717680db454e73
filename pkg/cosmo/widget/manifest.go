package widget

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
)

const (
	PackageFile = "package.json"
	ConfigFile  = "widget.config.json"
	DistDir     = "dist"
)

// Manifest identifies a widget release. It is derived from package.json and
// widget.config.json on every publish.
type Manifest struct {
	ID          string `json:"id" yaml:"id"`
	Version     string `json:"version" yaml:"version"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

type packageJSON struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type widgetConfig struct {
	Version string `json:"version"`
}

// ArchiveName is the file name of the zip built for this release.
func (m Manifest) ArchiveName() string {
	return fmt.Sprintf("%s-%s.zip", m.ID, m.Version)
}

// LoadManifest reads both manifest files from dir. Both must exist.
func LoadManifest(dir string, log *zap.SugaredLogger) (*Manifest, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	var pkg packageJSON
	if err := readJSON(dir, PackageFile, &pkg); err != nil {
		return nil, err
	}
	var cfg widgetConfig
	if err := readJSON(dir, ConfigFile, &cfg); err != nil {
		return nil, err
	}
	manifest, err := deriveManifest(pkg, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := semver.StrictNewVersion(manifest.Version); err != nil {
		log.Warnw("Widget version is not a semantic version", "version", manifest.Version, "error", err)
	}
	return manifest, nil
}

func deriveManifest(pkg packageJSON, cfg widgetConfig) (*Manifest, error) {
	// "@user/my-widget" -> "my-widget"
	id := pkg.Name
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	version := cfg.Version
	if version == "" {
		version = pkg.Version
	}
	if id == "" || version == "" {
		return nil, errors.New("could not determine widget ID or version")
	}
	return &Manifest{
		ID:          id,
		Version:     version,
		Name:        pkg.Name,
		Description: pkg.Description,
	}, nil
}

// RequireDist checks that the build produced the dist directory.
func RequireDist(dir string) (string, error) {
	distPath := filepath.Join(dir, DistDir)
	info, err := os.Stat(distPath)
	if err != nil || !info.IsDir() {
		return "", errors.New("dist directory not found. Build may have failed")
	}
	return distPath, nil
}

func readJSON(dir, name string, out any) error {
	content, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s not found in %s", name, describeDir(dir))
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func describeDir(dir string) string {
	if dir == "" || dir == "." {
		return "current directory"
	}
	return dir
}
