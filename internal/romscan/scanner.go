package romscan

import (
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"artie/internal/config"
	"artie/internal/faults"
	"artie/internal/logging"
)

// Entry identifies one local game file. Immutable once scanned; a directory
// refresh produces new entries rather than mutating old ones.
type Entry struct {
	System  string
	Path    string
	RelPath string
	Name    string
	Size    int64
}

// Extensions that are never ROMs even when they live in a system directory.
var ignoredExtensions = map[string]struct{}{
	".txt": {}, ".nfo": {}, ".dat": {}, ".xml": {}, ".json": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".bmp": {},
	".sav": {}, ".srm": {}, ".state": {}, ".cfg": {},
}

// Scanner discovers ROM files per system.
type Scanner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewScanner builds a Scanner over the configured ROM layout.
func NewScanner(cfg *config.Config, logger *slog.Logger) *Scanner {
	return &Scanner{cfg: cfg, logger: logging.NewComponentLogger(logger, "romscan")}
}

// Systems lists system identifiers that have a ROM directory: subdirectories
// of roms_dir plus every configured override.
func (s *Scanner) Systems() ([]string, error) {
	seen := make(map[string]struct{})
	systems := make([]string, 0, 16)

	entries, err := os.ReadDir(s.cfg.Paths.RomsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, faults.Wrap(faults.ErrIO, "romscan", "systems", "read roms dir", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		seen[entry.Name()] = struct{}{}
		systems = append(systems, entry.Name())
	}
	for system := range s.cfg.Paths.SystemOverrides {
		if _, ok := seen[system]; !ok {
			systems = append(systems, system)
		}
	}
	sort.Strings(systems)
	return systems, nil
}

// Scan walks one system's ROM directory and returns its entries sorted by
// relative path.
func (s *Scanner) Scan(system string) ([]Entry, error) {
	root := s.cfg.SystemRomsDir(system)
	info, err := os.Stat(root)
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, "romscan", "scan", "stat system dir "+root, err)
	}
	if !info.IsDir() {
		return nil, faults.Wrap(faults.ErrConfiguration, "romscan", "scan", root+" is not a directory", nil)
	}

	var roms []Entry
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !isRomFile(d.Name()) {
			return nil
		}
		fileInfo, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		roms = append(roms, Entry{
			System:  system,
			Path:    path,
			RelPath: rel,
			Name:    d.Name(),
			Size:    fileInfo.Size(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, faults.Wrap(faults.ErrIO, "romscan", "scan", "walk "+root, walkErr)
	}

	sort.Slice(roms, func(i, j int) bool { return roms[i].RelPath < roms[j].RelPath })
	s.logger.Debug("scanned system",
		logging.String(logging.FieldEventType, "system_scanned"),
		logging.String(logging.FieldSystem, system),
		logging.Int("roms", len(roms)))
	return roms, nil
}

// Find locates a single ROM by its path relative to the system directory.
func (s *Scanner) Find(system, relPath string) (Entry, error) {
	root := s.cfg.SystemRomsDir(system)
	path := filepath.Join(root, relPath)
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, faults.Wrap(faults.ErrNotFound, "romscan", "find", "stat "+path, err)
	}
	if info.IsDir() || !isRomFile(info.Name()) {
		return Entry{}, faults.Wrap(faults.ErrNotFound, "romscan", "find", path+" is not a rom file", nil)
	}
	return Entry{
		System:  system,
		Path:    path,
		RelPath: filepath.ToSlash(relPath),
		Name:    info.Name(),
		Size:    info.Size(),
	}, nil
}

// Checksum streams the file and returns its CRC32 as eight uppercase hex
// digits, the form the catalog expects.
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", faults.Wrap(faults.ErrIO, "romscan", "checksum", "open "+path, err)
	}
	defer file.Close()

	hasher := crc32.NewIEEE()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", faults.Wrap(faults.ErrIO, "romscan", "checksum", "read "+path, err)
	}
	return fmt.Sprintf("%08X", hasher.Sum32()), nil
}

func isRomFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	_, ignored := ignoredExtensions[ext]
	return !ignored
}
