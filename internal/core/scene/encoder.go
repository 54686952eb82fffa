package scene

import (
	"os"
	"path/filepath"

	"github.com/zeusync/simcore/internal/core/entity"
)

// MapEncoder reads and writes map and scene files. Paths handed to it are
// resolvable through the system's data paths.
type MapEncoder interface {
	LoadMapFromFile(path string) error
	SaveMapToFile(path, absPath string) error
	LoadSceneFromFile(path string) error
	SaveSceneToFile(path string) error
}

// EncoderFunc builds the encoder for a map system once it is attached to a
// manager.
type EncoderFunc func(m *entity.Manager, s *MapSystem) MapEncoder

type noEncoder struct{}

func (noEncoder) LoadMapFromFile(string) error       { return ErrNoEncoder }
func (noEncoder) SaveMapToFile(string, string) error { return ErrNoEncoder }
func (noEncoder) LoadSceneFromFile(string) error     { return ErrNoEncoder }
func (noEncoder) SaveSceneToFile(string) error       { return ErrNoEncoder }

// DataPaths is the ordered search list for map and scene resources.
type DataPaths []string

// Find resolves path to an existing regular file. Absolute paths are checked
// as they are; relative ones against each search directory in order, then
// against the working directory.
func (p DataPaths) Find(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if filepath.IsAbs(path) {
		return path, isFile(path)
	}
	for _, dir := range p {
		candidate := filepath.Join(dir, path)
		if isFile(candidate) {
			return candidate, true
		}
	}
	if isFile(path) {
		return path, true
	}
	return "", false
}

// SavePath is where a new file for path should be written: the existing file
// if there is one, else under the first search directory.
func (p DataPaths) SavePath(path string) string {
	if found, ok := p.Find(path); ok {
		return found
	}
	if filepath.IsAbs(path) || len(p) == 0 {
		return path
	}
	return filepath.Join(p[0], path)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
