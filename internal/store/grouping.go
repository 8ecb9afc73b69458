// Package store holds the board's column grouping logic and the cache that
// serves the normalized board to readers. Grouping is pure; the cache is the
// only mutable shared state in the service.
package store

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/h0rv/roadmap/internal/domain"
)

var (
	releasePattern = regexp.MustCompile(`(?i)release|version|milestone`)
	statusPattern  = regexp.MustCompile(`(?i)status|stage`)
	versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)
)

// groupRule is one step of the grouping-field heuristic.
type groupRule struct {
	name  string
	match func(domain.Field) bool
}

// groupRules are evaluated in order; the first field matching the earliest
// rule wins. Only SINGLE_SELECT fields group, so a board without one always
// gets a single column. A release-like field is preferred over a status
// field even when both exist.
var groupRules = []groupRule{
	{"release", func(f domain.Field) bool { return f.DataType == domain.FieldTypeSingleSelect && releasePattern.MatchString(f.Name) }},
	{"status", func(f domain.Field) bool { return f.DataType == domain.FieldTypeSingleSelect && statusPattern.MatchString(f.Name) }},
	{"single-select", func(f domain.Field) bool { return f.DataType == domain.FieldTypeSingleSelect }},
}

// SelectGroupField picks the field items are bucketed by. It returns false
// when no field qualifies, in which case the board has a single column.
func SelectGroupField(fields []domain.Field) (domain.Field, bool) {
	for _, rule := range groupRules {
		for _, f := range fields {
			if rule.match(f) {
				return f, true
			}
		}
	}
	return domain.Field{}, false
}

// IsReleaseField reports whether columns of the named field are ordered as versions.
func IsReleaseField(name string) bool {
	return releasePattern.MatchString(name)
}

// GroupAndSort distributes items into columns.
//
// Columns are the declared options of the grouping field in declared order,
// followed by buckets created for values that are not declared options, and
// a trailing "No Status" bucket for items without a value. Release-like
// fields have their columns sorted newest version first, and their
// "No Status" bucket is only kept when it holds items. Without a grouping
// field every item lands in a single "All Items" column. Every item appears
// in exactly one column.
func GroupAndSort(fields []domain.Field, groupByField string, items []domain.ProjectItem) domain.Columns {
	if groupByField == "" {
		all := make([]domain.ProjectItem, len(items))
		copy(all, items)
		return domain.Columns{{Name: domain.AllItemsColumn, Items: all}}
	}

	var order []string
	buckets := make(map[string][]domain.ProjectItem)
	addBucket := func(name string) {
		if _, ok := buckets[name]; ok {
			return
		}
		order = append(order, name)
		buckets[name] = []domain.ProjectItem{}
	}

	for _, f := range fields {
		if f.Name != groupByField {
			continue
		}
		for _, opt := range f.Options {
			if opt.Name != domain.NoStatusColumn {
				addBucket(opt.Name)
			}
		}
		break
	}

	noStatus := []domain.ProjectItem{}
	for _, item := range items {
		value, ok := item.FieldString(groupByField)
		if !ok || value == domain.NoStatusColumn {
			noStatus = append(noStatus, item)
			continue
		}
		// The live option list and an item's value can race; never drop the item
		addBucket(value)
		buckets[value] = append(buckets[value], item)
	}

	release := IsReleaseField(groupByField)
	if release {
		order = sortVersionsDesc(order)
	}

	columns := make(domain.Columns, 0, len(order)+1)
	for _, name := range order {
		columns = append(columns, domain.Column{Name: name, Items: buckets[name]})
	}
	if !release || len(noStatus) > 0 {
		columns = append(columns, domain.Column{Name: domain.NoStatusColumn, Items: noStatus})
	}
	return columns
}

// version is a parsed major.minor.patch triple.
type version [3]int

// parseVersion extracts the first major.minor[.patch] in s; anything that
// does not parse is 0.0.0.
func parseVersion(s string) version {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return version{}
	}
	var v version
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			continue
		}
		v[i] = n
	}
	return v
}

func (v version) compare(o version) int {
	for i := range v {
		switch {
		case v[i] > o[i]:
			return 1
		case v[i] < o[i]:
			return -1
		}
	}
	return 0
}

// sortVersionsDesc orders names newest version first, keeping the original
// order between equal versions.
func sortVersionsDesc(names []string) []string {
	type keyed struct {
		name string
		v    version
	}
	keys := make([]keyed, len(names))
	for i, n := range names {
		keys[i] = keyed{name: n, v: parseVersion(n)}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].v.compare(keys[j].v) > 0
	})

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.name
	}
	return out
}
