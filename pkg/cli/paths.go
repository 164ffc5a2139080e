package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the streambuf directory structure
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base streambuf directory (~/.streambuf)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.streambuf/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.streambuf/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// StoreDir returns the default capture store directory (~/.streambuf/<app>/store)
func (p *Paths) StoreDir() string {
	return filepath.Join(p.AppDir(), "store")
}

// DumpDir returns the default dump directory (~/.streambuf/<app>/dumps)
func (p *Paths) DumpDir() string {
	return filepath.Join(p.AppDir(), "dumps")
}

// EnsureAppDir creates the app directory if it doesn't exist
func (p *Paths) EnsureAppDir() error {
	return os.MkdirAll(p.AppDir(), 0755)
}

// EnsureStoreDir creates the store directory if it doesn't exist
func (p *Paths) EnsureStoreDir() error {
	return os.MkdirAll(p.StoreDir(), 0755)
}

// EnsureDumpDir creates the dump directory if it doesn't exist
func (p *Paths) EnsureDumpDir() error {
	return os.MkdirAll(p.DumpDir(), 0755)
}
