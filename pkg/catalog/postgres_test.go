package catalog

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildBookQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    Filter
		wantWhere string
		wantTail  string
		wantArgs  []any
	}{
		{
			name:     "no filter",
			filter:   Filter{},
			wantTail: "FROM books ORDER BY title",
			wantArgs: nil,
		},
		{
			name:      "related",
			filter:    relatedFilter(&Book{ID: "b1", Category: "Vedas"}, 0),
			wantWhere: "WHERE category = $1 AND id::text <> $2",
			wantTail:  "ORDER BY title LIMIT $3",
			wantArgs:  []any{"Vedas", "b1", DefaultRelatedLimit},
		},
		{
			name:      "language and search with paging",
			filter:    Filter{Language: "Hindi", Search: " gita ", Limit: 20, Offset: 40},
			wantWhere: "WHERE language = $1 AND (title ILIKE $2 OR author ILIKE $2)",
			wantTail:  "ORDER BY title LIMIT $3 OFFSET $4",
			wantArgs:  []any{"Hindi", "%gita%", 20, 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildBookQuery(tt.filter)
			if tt.wantWhere != "" && !strings.Contains(query, tt.wantWhere) {
				t.Errorf("query %q missing %q", query, tt.wantWhere)
			}
			if !strings.HasSuffix(query, tt.wantTail) {
				t.Errorf("query %q should end with %q", query, tt.wantTail)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}
}
