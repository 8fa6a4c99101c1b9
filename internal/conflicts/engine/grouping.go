package engine

import (
	"sort"
	"strings"

	conflicterrors "roomdesk/internal/conflicts/errors"
	"roomdesk/pkg/model"

	"github.com/google/uuid"
)

// conflictNamespace seeds the name-based UUIDs used as conflict ids, so the same
// members on the same resource always produce the same id.
var conflictNamespace = uuid.MustParse("4f1c2b7e-8a53-4d0e-9a6b-2f7d1c9e5b30")

type entry struct {
	booking *model.Booking
	index   int
}

// Group partitions bookings into conflict groups: maximal components of the
// overlap graph per resource. Only pending bookings take part. Components with
// a single member are reported as without conflict.
func Group(bookings []*model.Booking) (*model.GroupingResult, error) {
	if err := validateGroupingInput(bookings); err != nil {
		return nil, err
	}

	resourceOrder := []string{}
	byResource := map[string][]entry{}
	for i, b := range bookings {
		if !b.IsPending() {
			continue
		}
		if _, seen := byResource[b.ResourceID]; !seen {
			resourceOrder = append(resourceOrder, b.ResourceID)
		}
		byResource[b.ResourceID] = append(byResource[b.ResourceID], entry{booking: b, index: i})
	}

	result := &model.GroupingResult{
		Groups:          []*model.ConflictGroup{},
		WithoutConflict: []*model.Booking{},
	}
	singles := []entry{}

	for _, resourceID := range resourceOrder {
		for _, component := range components(byResource[resourceID]) {
			if len(component) == 1 {
				singles = append(singles, component[0])
				continue
			}
			result.Groups = append(result.Groups, newGroup(resourceID, component))
		}
	}

	sort.SliceStable(result.Groups, func(i, j int) bool {
		a, b := result.Groups[i], result.Groups[j]
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		if !a.WindowStart.Equal(b.WindowStart) {
			return a.WindowStart.Before(b.WindowStart)
		}
		return a.ConflictID < b.ConflictID
	})

	sort.Slice(singles, func(i, j int) bool { return singles[i].index < singles[j].index })
	for _, s := range singles {
		result.WithoutConflict = append(result.WithoutConflict, s.booking.Clone())
	}

	return result, nil
}

// components computes the connected components of the overlap graph for
// bookings sharing one resource. Sorted by start, a booking overlaps some
// earlier booking iff it starts before the furthest end seen so far in the
// running component, so one sweep feeds all the unions needed.
func components(entries []entry) [][]entry {
	sorted := make([]entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].booking, sorted[j].booking
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if !a.EndTime.Equal(b.EndTime) {
			return a.EndTime.Before(b.EndTime)
		}
		return sorted[i].index < sorted[j].index
	})

	sets := newDisjointSet(len(sorted))
	furthest := -1
	for i, e := range sorted {
		if furthest >= 0 && e.booking.StartTime.Before(sorted[furthest].booking.EndTime) {
			sets.union(furthest, i)
			if e.booking.EndTime.After(sorted[furthest].booking.EndTime) {
				furthest = i
			}
			continue
		}
		furthest = i
	}

	rootOrder := []int{}
	members := map[int][]entry{}
	for i, e := range sorted {
		root := sets.find(i)
		if _, seen := members[root]; !seen {
			rootOrder = append(rootOrder, root)
		}
		members[root] = append(members[root], e)
	}

	out := make([][]entry, 0, len(rootOrder))
	for _, root := range rootOrder {
		out = append(out, members[root])
	}
	return out
}

func newGroup(resourceID string, component []entry) *model.ConflictGroup {
	ordered := make([]entry, len(component))
	copy(ordered, component)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].booking, ordered[j].booking
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ordered[i].index < ordered[j].index
	})

	group := &model.ConflictGroup{
		ResourceID:  resourceID,
		Members:     make([]*model.Booking, 0, len(ordered)),
		MemberCount: len(ordered),
	}
	ids := make([]string, 0, len(ordered))
	for i, e := range ordered {
		b := e.booking.Clone()
		group.Members = append(group.Members, b)
		ids = append(ids, b.ID)
		if i == 0 || b.StartTime.Before(group.WindowStart) {
			group.WindowStart = b.StartTime
		}
		if i == 0 || b.EndTime.After(group.WindowEnd) {
			group.WindowEnd = b.EndTime
		}
	}
	group.FirstRequestedID = group.Members[0].ID
	group.ConflictID = ConflictID(resourceID, ids)
	return group
}

// ConflictID derives the stable identifier of a group from its resource and
// member ids. Member order does not matter.
func ConflictID(resourceID string, memberIDs []string) string {
	ids := append([]string(nil), memberIDs...)
	sort.Strings(ids)
	name := resourceID + "|" + strings.Join(ids, ",")
	return uuid.NewSHA1(conflictNamespace, []byte(name)).String()
}

func validateGroupingInput(bookings []*model.Booking) error {
	seen := make(map[string]struct{}, len(bookings))
	for i, b := range bookings {
		if b == nil {
			return conflicterrors.Validation("bookings", "entry %d is empty", i)
		}
		if strings.TrimSpace(b.ID) == "" {
			return conflicterrors.Validation("id", "entry %d has no booking id", i)
		}
		if strings.TrimSpace(b.ResourceID) == "" {
			return conflicterrors.Validation("resource_id", "booking %s has no resource id", b.ID)
		}
		if !b.StartTime.Before(b.EndTime) {
			return conflicterrors.Validation("time", "booking %s must start before it ends", b.ID)
		}
		if _, dup := seen[b.ID]; dup {
			return conflicterrors.Validation("id", "booking %s appears more than once", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}

type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

func (ds *disjointSet) find(x int) int {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

func (ds *disjointSet) union(a, b int) {
	ra, rb := ds.find(a), ds.find(b)
	if ra == rb {
		return
	}
	switch {
	case ds.rank[ra] < ds.rank[rb]:
		ds.parent[ra] = rb
	case ds.rank[ra] > ds.rank[rb]:
		ds.parent[rb] = ra
	default:
		ds.parent[rb] = ra
		ds.rank[ra]++
	}
}
