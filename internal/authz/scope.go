package authz

import (
	"fmt"
	"strings"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

// Filter is one predicate plus its bound value. Predicates use `?` for the
// placeholder; every `?` in a single predicate binds the same value (the
// search-two-columns idiom).
type Filter struct {
	Predicate string
	Value     interface{}
	bare      bool
}

// FilterSet assembles predicates declaratively and renders positional
// placeholders exactly once, so composing caller filters with scoper
// filters can never miscount `$n` indices.
type FilterSet struct {
	filters []Filter
}

// NewFilterSet returns an empty filter set.
func NewFilterSet() *FilterSet {
	return &FilterSet{}
}

// Add appends a predicate bound to a value.
func (f *FilterSet) Add(predicate string, value interface{}) *FilterSet {
	f.filters = append(f.filters, Filter{Predicate: predicate, Value: value})
	return f
}

// AddClause appends a predicate that binds no value (e.g. `1 = 0`).
func (f *FilterSet) AddClause(predicate string) *FilterSet {
	f.filters = append(f.filters, Filter{Predicate: predicate, bare: true})
	return f
}

// Empty reports whether no predicates have been added.
func (f *FilterSet) Empty() bool {
	return f == nil || len(f.filters) == 0
}

// Render joins all predicates with AND and numbers placeholders starting
// at startIndex. It returns the SQL fragment (without a leading WHERE/AND)
// and the argument slice in placeholder order.
func (f *FilterSet) Render(startIndex int) (string, []interface{}) {
	if f.Empty() {
		return "", nil
	}
	if startIndex < 1 {
		startIndex = 1
	}

	parts := make([]string, 0, len(f.filters))
	args := make([]interface{}, 0, len(f.filters))
	next := startIndex

	for _, flt := range f.filters {
		if flt.bare {
			parts = append(parts, flt.Predicate)
			continue
		}
		placeholder := fmt.Sprintf("$%d", next)
		parts = append(parts, strings.ReplaceAll(flt.Predicate, "?", placeholder))
		args = append(args, flt.Value)
		next++
	}

	return strings.Join(parts, " AND "), args
}

// Scope appends the row-visibility predicates a role is entitled to for
// list queries of the given resource type. Program leaders list unfiltered;
// every stream-affiliated role is narrowed to its own stream; lecturers are
// additionally narrowed to their own reports; students and lecturers see
// only their own user row, mirroring what the evaluator grants read_one;
// a stream-scoped identity without a stream matches nothing.
//
// Column prefixes follow the repository queries: report/rating listings
// join courses as `c`, reports alias `r`, ratings alias `rt`.
func Scope(id Identity, resourceType ResourceType, base *FilterSet) *FilterSet {
	if base == nil {
		base = NewFilterSet()
	}
	if id.Role == models.RoleProgramLeader {
		return base
	}

	streamColumn := map[ResourceType]string{
		ResourceStream:    "id",
		ResourceCourse:    "stream_id",
		ResourceClass:     "stream_id",
		ResourceUser:      "stream_id",
		ResourceReport:    "c.stream_id",
		ResourceRating:    "c.stream_id",
		ResourceComplaint: "stream_id",
	}[resourceType]
	if streamColumn == "" {
		base.AddClause("1 = 0")
		return base
	}

	if id.StreamID == nil {
		// Stream-scoped role without a stream sees nothing, never everything.
		base.AddClause("1 = 0")
		return base
	}
	base.Add(streamColumn+" = ?", *id.StreamID)

	switch id.Role {
	case models.RoleLecturer:
		if resourceType == ResourceReport {
			base.Add("r.lecturer_id = ?", id.UserID)
		}
		if resourceType == ResourceComplaint {
			base.Add("author_id = ?", id.UserID)
		}
		if resourceType == ResourceUser {
			base.Add("id = ?", id.UserID)
		}
	case models.RoleStudent:
		if resourceType == ResourceComplaint {
			base.Add("author_id = ?", id.UserID)
		}
		if resourceType == ResourceRating {
			base.Add("rt.student_id = ?", id.UserID)
		}
		if resourceType == ResourceUser {
			base.Add("id = ?", id.UserID)
		}
	}

	return base
}
