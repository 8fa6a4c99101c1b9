package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type room struct {
	name     string
	capacity int
	floor    int
}

func rooms() []room {
	return []room{
		{"Atlas", 8, 2},
		{"Birch", 4, 1},
		{"Cedar", 8, 1},
		{"Delta", 12, 3},
		{"Elm", 4, 2},
	}
}

func names(rs []room) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.name
	}
	return out
}

func byCapacity(a, b room) int { return a.capacity - b.capacity }
func byFloor(a, b room) int    { return a.floor - b.floor }

func TestPipeline_Run(t *testing.T) {
	tests := []struct {
		name     string
		pipeline *Pipeline[room]
		want     []string
	}{
		{
			name:     "zero pipeline keeps input order",
			pipeline: New[room](),
			want:     []string{"Atlas", "Birch", "Cedar", "Delta", "Elm"},
		},
		{
			name:     "predicates combine with AND",
			pipeline: New[room]().Where(func(r room) bool { return r.capacity >= 8 }).Where(func(r room) bool { return r.floor < 3 }),
			want:     []string{"Atlas", "Cedar"},
		},
		{
			name:     "stable single key",
			pipeline: New[room]().OrderBy(byCapacity),
			want:     []string{"Birch", "Elm", "Atlas", "Cedar", "Delta"},
		},
		{
			name:     "multi key",
			pipeline: New[room]().OrderBy(byCapacity).OrderBy(Desc(byFloor)),
			want:     []string{"Elm", "Birch", "Atlas", "Cedar", "Delta"},
		},
		{
			name:     "descending",
			pipeline: New[room]().OrderBy(Desc(byCapacity)),
			want:     []string{"Delta", "Atlas", "Cedar", "Birch", "Elm"},
		},
		{
			name:     "nil predicate and comparator are ignored",
			pipeline: New[room]().Where(nil).OrderBy(nil),
			want:     []string{"Atlas", "Birch", "Cedar", "Delta", "Elm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(tt.pipeline.Run(rooms())))
		})
	}
}

func TestPipeline_RunDoesNotModifyInput(t *testing.T) {
	in := rooms()
	New[room]().OrderBy(Desc(byCapacity)).Run(in)
	assert.Equal(t, rooms(), in)
}

func TestPipeline_Page(t *testing.T) {
	p := New[room]().OrderBy(func(a, b room) int { return strings.Compare(a.name, b.name) })

	tests := []struct {
		name      string
		limit     int
		offset    int64
		want      []string
		wantTotal int64
	}{
		{"first page", 2, 0, []string{"Atlas", "Birch"}, 5},
		{"middle page", 2, 2, []string{"Cedar", "Delta"}, 5},
		{"short last page", 2, 4, []string{"Elm"}, 5},
		{"offset past end", 2, 9, []string{}, 5},
		{"no limit", 0, 3, []string{"Delta", "Elm"}, 5},
		{"negative offset", 1, -4, []string{"Atlas"}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, total := p.Page(rooms(), tt.limit, tt.offset)
			assert.Equal(t, tt.want, names(page))
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("", "anything"))
	assert.True(t, ContainsFold("  board ", "Quarterly Board Review"))
	assert.True(t, ContainsFold("ops", "Title", "weekly OPS sync"))
	assert.False(t, ContainsFold("hr", "Title", "Notes"))
}
