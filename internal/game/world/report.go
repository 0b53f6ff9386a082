package world

import "fmt"

// Sections of a map that entries are skipped from.
const (
	SectionBack   = "back"
	SectionTile   = "tile"
	SectionObj    = "obj"
	SectionPortal = "portal"
)

// Skipped describes one map entry left out of a scene. Layer is -1 for
// sections outside the numbered layers.
type Skipped struct {
	Section string
	Layer   int
	Entry   string
	Err     error
}

func (s Skipped) String() string {
	if s.Layer < 0 {
		return fmt.Sprintf("%s/%s: %v", s.Section, s.Entry, s.Err)
	}
	return fmt.Sprintf("%d/%s/%s: %v", s.Layer, s.Section, s.Entry, s.Err)
}

// Report lists the entries skipped while assembling a scene.
type Report struct {
	Skipped []Skipped
}

func (r *Report) add(s ...Skipped) {
	r.Skipped = append(r.Skipped, s...)
}

// Len returns the number of skipped entries.
func (r Report) Len() int {
	return len(r.Skipped)
}

// Count returns the number of skipped entries of one section.
func (r Report) Count(section string) int {
	n := 0
	for _, s := range r.Skipped {
		if s.Section == section {
			n++
		}
	}
	return n
}
