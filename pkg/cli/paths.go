package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the per-app directories below ~/.giztoy.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths returns the paths of app for the current user.
func NewPaths(app string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: app, HomeDir: home}, nil
}

// AppDir is ~/.giztoy/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir, p.AppName)
}

// ConfigFile is ~/.giztoy/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir is ~/.giztoy/<app>/data, the default record directory.
func (p *Paths) DataDir() string {
	return filepath.Join(p.AppDir(), "data")
}
