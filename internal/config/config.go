package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	appDirName    = "dentaltracker"
	mediaSubdir   = "DentalTracker"
	framesDirName = "timelapse_frames"
)

// GetDataDir resolves the base directory for all tracker storage. It checks
// DENTALTRACKER_DIR first, then XDG paths, and finally falls back to the
// user's home directory.
func GetDataDir() string {
	if explicit := os.Getenv("DENTALTRACKER_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appDirName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appDirName)
}

// GetCacheDir returns the directory for disposable working files. When the
// data directory is overridden the cache lives beside it so tests and
// portable installs stay self-contained.
func GetCacheDir() string {
	if explicit := os.Getenv("DENTALTRACKER_DIR"); explicit != "" {
		return filepath.Join(explicit, "cache")
	}

	xdg.Reload()

	if xdg.CacheHome == "" {
		return filepath.Join(GetDataDir(), "cache")
	}
	return filepath.Join(xdg.CacheHome, appDirName)
}

// GetDBPath returns the absolute path to the SQLite database file.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "index.db")
}

// GetPicturesDir returns the directory that stores captured photos.
func GetPicturesDir() string {
	return filepath.Join(GetDataDir(), "Pictures", mediaSubdir)
}

// GetMoviesDir returns the directory that receives finished timelapse videos.
func GetMoviesDir() string {
	return filepath.Join(GetDataDir(), "Movies", mediaSubdir)
}

// GetFramesDir returns the scratch root under which timelapse runs stage frames.
func GetFramesDir() string {
	return filepath.Join(GetCacheDir(), framesDirName)
}

// GetConfigFile returns the optional settings file location.
func GetConfigFile() string {
	return filepath.Join(GetDataDir(), "config.yaml")
}
