package grouping

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dcm "dicom-deident/internal/dicom"
)

// SeriesKey identifies the group of datasets that belong in one destination
// subfolder.
type SeriesKey struct {
	StudyUID  string
	SeriesUID string
}

// Series is one SeriesKey bucket: the accepted file paths in discovery
// order, plus the modality seen on the first file.
type Series struct {
	Key      SeriesKey
	Modality string
	Files    []string
}

// Rejected records a discovered file that is not a usable dataset.
type Rejected struct {
	Path   string
	Reason string
}

// Duplicate records a file whose SOPInstanceUID was already claimed by an
// earlier path. Only the first-seen path becomes a copy target.
type Duplicate struct {
	Path      string
	FirstPath string
	SOPUID    string
}

// Grouping is the result of scanning a source tree.
type Grouping struct {
	Series     []*Series
	Rejected   []Rejected
	Duplicates []Duplicate

	byKey map[SeriesKey]*Series
	bySOP map[string]string // SOPInstanceUID -> first-seen path
}

// FileCount returns the number of accepted dataset files.
func (g *Grouping) FileCount() int {
	n := 0
	for _, s := range g.Series {
		n += len(s.Files)
	}
	return n
}

// StudyCount returns the number of distinct studies.
func (g *Grouping) StudyCount() int {
	studies := make(map[string]bool)
	for _, s := range g.Series {
		studies[s.Key.StudyUID] = true
	}
	return len(studies)
}

// Names and extensions that cannot be DICOM datasets; skipping them avoids
// the open-and-probe cost on obvious bystanders.
var excludedNames = map[string]bool{
	"DICOMDIR":    true,
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

var excludedExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".xml": true,
	".yaml": true, ".yml": true, ".csv": true, ".log": true,
	".png": true, ".jpg": true, ".jpeg": true, ".pdf": true,
	".zip": true, ".tar": true, ".gz": true, ".html": true,
	".exe": true, ".dll": true, ".so": true,
}

var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
}

// Scan walks the source tree, classifies every candidate file, and groups
// accepted datasets into Series buckets. Non-DICOM and malformed files land
// in Rejected; repeated SOPInstanceUIDs land in Duplicates. Neither is
// fatal. Symbolic links are followed at most once per real path.
func Scan(root string) (*Grouping, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("could not access source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", root)
	}

	s := &scanner{
		grouping: &Grouping{
			byKey: make(map[SeriesKey]*Series),
			bySOP: make(map[string]string),
		},
		visited: make(map[string]bool),
	}
	if err := s.walkDir(root); err != nil {
		return nil, err
	}
	return s.grouping, nil
}

type scanner struct {
	grouping *Grouping
	visited  map[string]bool // real paths already walked or classified
}

func (s *scanner) walkDir(dir string) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil // dangling link or vanished directory
	}
	if s.visited[real] {
		return nil
	}
	s.visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		// An unreadable directory must not abort the tree traversal.
		s.grouping.Rejected = append(s.grouping.Rejected, Rejected{Path: dir, Reason: err.Error()})
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		if entry.IsDir() || isDirLink(path, entry) {
			if excludedDirs[name] {
				continue
			}
			if err := s.walkDir(path); err != nil {
				return err
			}
			continue
		}

		if excludedNames[name] || excludedExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		s.classifyFile(path)
	}
	return nil
}

// isDirLink reports whether the entry is a symlink pointing at a directory.
func isDirLink(path string, entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (s *scanner) classifyFile(path string) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return
	}
	if s.visited[real] {
		return
	}
	s.visited[real] = true

	result, err := dcm.Classify(path)
	switch {
	case errors.Is(err, dcm.ErrNotDICOM):
		s.grouping.Rejected = append(s.grouping.Rejected, Rejected{Path: path, Reason: "not a DICOM dataset"})
		return
	case err != nil:
		s.grouping.Rejected = append(s.grouping.Rejected, Rejected{Path: path, Reason: err.Error()})
		return
	}

	if first, seen := s.grouping.bySOP[result.SOPUID]; seen {
		s.grouping.Duplicates = append(s.grouping.Duplicates, Duplicate{
			Path:      path,
			FirstPath: first,
			SOPUID:    result.SOPUID,
		})
		return
	}
	s.grouping.bySOP[result.SOPUID] = path

	key := SeriesKey{StudyUID: result.StudyUID, SeriesUID: result.SeriesUID}
	series, ok := s.grouping.byKey[key]
	if !ok {
		series = &Series{Key: key, Modality: result.Modality}
		s.grouping.byKey[key] = series
		s.grouping.Series = append(s.grouping.Series, series)
	}
	series.Files = append(series.Files, path)
}
