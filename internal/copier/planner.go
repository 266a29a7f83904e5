package copier

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"

	"dicom-deident/internal/grouping"
)

// CopyOp is one planned write: source file to destination path.
type CopyOp struct {
	SourcePath string
	DestPath   string
}

// SeriesPlan is the ordered set of writes for one series.
type SeriesPlan struct {
	Key grouping.SeriesKey
	Dir string
	Ops []CopyOp
}

// Plan maps every accepted file to a destination path. The layout is
// study-<hash>/series-<hash>/NNNN.dcm where the hashes are short digests of
// the original UIDs, so repeated runs over the same input produce the same
// plan regardless of discovery order. Hash-prefix collisions between
// distinct UIDs get a numeric suffix. Plan performs no I/O.
func Plan(g *grouping.Grouping, destRoot string) []SeriesPlan {
	series := make([]*grouping.Series, len(g.Series))
	copy(series, g.Series)
	sort.Slice(series, func(i, j int) bool {
		a, b := series[i].Key, series[j].Key
		if a.StudyUID != b.StudyUID {
			return a.StudyUID < b.StudyUID
		}
		return a.SeriesUID < b.SeriesUID
	})

	studyDirs := newNamespace("study")
	seriesDirs := make(map[string]*namespace)
	plans := make([]SeriesPlan, 0, len(series))
	for _, s := range series {
		studyDir := studyDirs.name(s.Key.StudyUID)
		ns, ok := seriesDirs[studyDir]
		if !ok {
			ns = newNamespace("series")
			seriesDirs[studyDir] = ns
		}
		seriesDir := filepath.Join(studyDir, ns.name(s.Key.SeriesUID))

		plan := SeriesPlan{Key: s.Key, Dir: filepath.Join(destRoot, seriesDir)}
		for i, src := range s.Files {
			plan.Ops = append(plan.Ops, CopyOp{
				SourcePath: src,
				DestPath:   filepath.Join(plan.Dir, fmt.Sprintf("%04d.dcm", i+1)),
			})
		}
		plans = append(plans, plan)
	}
	return plans
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// namespace hands out stable folder names, appending -2, -3, ... when two
// distinct values collide on the same hash prefix.
type namespace struct {
	prefix string
	byName map[string]string // assigned name -> value
	byVal  map[string]string // value -> assigned name
}

func newNamespace(prefix string) *namespace {
	return &namespace{
		prefix: prefix,
		byName: make(map[string]string),
		byVal:  make(map[string]string),
	}
}

func (n *namespace) name(value string) string {
	if name, ok := n.byVal[value]; ok {
		return name
	}
	base := n.prefix + "-" + shortHash(value)
	name := base
	for i := 2; ; i++ {
		owner, taken := n.byName[name]
		if !taken || owner == value {
			break
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
	n.byName[name] = value
	n.byVal[value] = name
	return name
}
