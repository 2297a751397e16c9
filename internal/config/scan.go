package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var certExtensions = []string{".pem", ".crt", ".cer", ".der"}

// ExpandCertPaths resolves pinned certificate entries against rootDir.
// Directory entries are replaced by the certificate files they contain,
// sorted by name. Missing paths are an error.
func ExpandCertPaths(rootDir string, entries []string) ([]string, error) {
	var out []string
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		path := resolvePath(rootDir, entry, entry)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("pinned certificate %s: %w", entry, err)
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}
		found, err := ScanCertDir(path)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("pinned certificate dir %s holds no certificates", entry)
		}
		out = append(out, found...)
	}
	return out, nil
}

// ScanCertDir lists certificate files directly inside dir.
func ScanCertDir(dir string) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if slices.Contains(certExtensions, ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan certificate dir %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}
