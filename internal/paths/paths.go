package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"andrust/internal/acquire"
	"andrust/internal/cargoconfig"
	"andrust/internal/config"
)

// DataDirEnv overrides the per-user data directory.
const DataDirEnv = "ANDRUST_HOME"

var (
	lookupEnv   = os.LookupEnv
	userHomeDir = os.UserHomeDir
)

// ProjectPaths captures canonical locations for a Rust project.
type ProjectPaths struct {
	Root        string
	ConfigFile  string
	CargoConfig string
}

// Resolve determines the project root using the optional --project flag or the
// current working directory when the flag is empty.
func Resolve(projectFlag string) (ProjectPaths, error) {
	var (
		root string
		err  error
	)

	if projectFlag != "" {
		root, err = filepath.Abs(projectFlag)
	} else {
		root, err = os.Getwd()
	}
	if err != nil {
		return ProjectPaths{}, fmt.Errorf("resolve project root: %w", err)
	}

	return newProjectPaths(root), nil
}

func newProjectPaths(root string) ProjectPaths {
	return ProjectPaths{
		Root:        root,
		ConfigFile:  filepath.Join(root, config.FileName),
		CargoConfig: filepath.Join(root, cargoconfig.RelativePath),
	}
}

// WithConfigFile points the project at an explicit config file.
func (p ProjectPaths) WithConfigFile(path string) ProjectPaths {
	if strings.TrimSpace(path) != "" {
		p.ConfigFile = resolveProjectPath(p.Root, path)
	}
	return p
}

// DataPaths are the per-user locations for downloads, extracted NDKs and logs.
type DataPaths struct {
	Root         string
	DownloadsDir string
	NDKDir       string
	LogsDir      string
}

// Data returns the data directory layout: $ANDRUST_HOME when set, otherwise
// ~/.andrust.
func Data() (DataPaths, error) {
	if dir, ok := lookupEnv(DataDirEnv); ok && strings.TrimSpace(dir) != "" {
		abs, err := filepath.Abs(strings.TrimSpace(dir))
		if err != nil {
			return DataPaths{}, fmt.Errorf("resolve %s: %w", DataDirEnv, err)
		}
		return newDataPaths(abs), nil
	}
	home, err := userHomeDir()
	if err != nil {
		return DataPaths{}, fmt.Errorf("detect user home: %w", err)
	}
	return newDataPaths(filepath.Join(home, ".andrust")), nil
}

func newDataPaths(root string) DataPaths {
	return DataPaths{
		Root:         root,
		DownloadsDir: filepath.Join(root, "downloads"),
		NDKDir:       filepath.Join(root, "ndk"),
		LogsDir:      filepath.Join(root, "logs"),
	}
}

// ApplyConfig applies download directory overrides from the project config.
// cfg is expected to have had ResolvePaths applied.
func ApplyConfig(dp DataPaths, cfg config.Config) DataPaths {
	if dir := strings.TrimSpace(cfg.Download.Dir); dir != "" {
		dp.DownloadsDir = expandHome(dir)
	}
	if dir := strings.TrimSpace(cfg.Download.ExtractDir); dir != "" {
		dp.NDKDir = expandHome(dir)
	}
	return dp
}

// ManifestFile is the record of completed NDK downloads.
func (d DataPaths) ManifestFile() string {
	return filepath.Join(d.Root, acquire.ManifestFileName)
}

// EnsureDirs creates the data directory hierarchy.
func (d DataPaths) EnsureDirs() error {
	for _, dir := range []string{d.Root, d.DownloadsDir, d.NDKDir, d.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandHome(value string) string {
	if value != "~" && !strings.HasPrefix(value, "~/") {
		return value
	}
	home, err := userHomeDir()
	if err != nil {
		return value
	}
	return filepath.Join(home, value[1:])
}

func resolveProjectPath(root, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
