//go:build linux

package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subrange subidRange
		preserve *idMapTriple
		want     idMapping
	}{
		{
			name:     "no preserve, no subordinate range",
			subrange: subidRange{},
			preserve: nil,
			want:     nil,
		},
		{
			name:     "no preserve, full subordinate range mapped at inside 0",
			subrange: subidRange{Start: 100000, Len: 65536},
			preserve: nil,
			want:     idMapping{{Inside: 0, Outside: 100000, Length: 65536}},
		},
		{
			name:     "preserve as root: pinned id 0 with no subordinate range",
			subrange: subidRange{},
			preserve: &idMapTriple{Inside: 0, Outside: 1000},
			want:     idMapping{{Inside: 0, Outside: 1000, Length: 1}},
		},
		{
			name:     "preserve as user: pinned id inside the subordinate range's span",
			subrange: subidRange{Start: 100000, Len: 65536},
			preserve: &idMapTriple{Inside: 1000, Outside: 1000},
			want: idMapping{
				{Inside: 0, Outside: 100000, Length: 1000},
				{Inside: 1000, Outside: 1000, Length: 1},
				{Inside: 1001, Outside: 101000, Length: 64536},
			},
		},
		{
			name:     "preserve as user: pinned id beyond the subordinate range's length consumes it all as prefix",
			subrange: subidRange{Start: 100000, Len: 10},
			preserve: &idMapTriple{Inside: 1000, Outside: 1000},
			want: idMapping{
				{Inside: 0, Outside: 100000, Length: 10},
				{Inside: 1000, Outside: 1000, Length: 1},
			},
		},
		{
			name:     "preserve as root: pinned id 0 consumes no prefix even with a subordinate range",
			subrange: subidRange{Start: 100000, Len: 65536},
			preserve: &idMapTriple{Inside: 0, Outside: 1000},
			want: idMapping{
				{Inside: 0, Outside: 1000, Length: 1},
				{Inside: 1, Outside: 100000, Length: 65536},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := computeMapping(tc.subrange, tc.preserve)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("computeMapping(%+v, %+v) mismatch (-want +got):\n%s", tc.subrange, tc.preserve, diff)
			}
		})
	}
}

func TestIdMappingFlattenAndLines(t *testing.T) {
	t.Parallel()

	m := idMapping{{Inside: 0, Outside: 100000, Length: 1000}, {Inside: 1000, Outside: 1000, Length: 1}}

	wantFlat := []string{"0", "100000", "1000", "1000", "1000", "1"}
	if diff := cmp.Diff(wantFlat, m.Flatten()); diff != "" {
		t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
	}

	wantLines := "0 100000 1000\n1000 1000 1\n"
	if got := m.Lines(); got != wantLines {
		t.Errorf("Lines() = %q, want %q", got, wantLines)
	}
}

func TestFindRange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "subuid")

	content := "# comment\n\nalice:100000:65536\n1001:165536:65536\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		username string
		id       uint32
		wantOK   bool
		want     subidRange
	}{
		{name: "match by username", username: "alice", id: 999, wantOK: true, want: subidRange{Start: 100000, Len: 65536}},
		{name: "match by numeric id", username: "bob", id: 1001, wantOK: true, want: subidRange{Start: 165536, Len: 65536}},
		{name: "no match", username: "carol", id: 42, wantOK: false, want: subidRange{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok, err := findRange(path, tc.username, tc.id)
			if err != nil {
				t.Fatalf("findRange() unexpected error: %v", err)
			}

			if ok != tc.wantOK {
				t.Fatalf("findRange() ok = %v, want %v", ok, tc.wantOK)
			}

			if got != tc.want {
				t.Errorf("findRange() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFindRangeMissingFile(t *testing.T) {
	t.Parallel()

	_, ok, err := findRange(filepath.Join(t.TempDir(), "does-not-exist"), "alice", 1000)
	if err != nil {
		t.Fatalf("findRange() unexpected error for missing file: %v", err)
	}

	if ok {
		t.Fatal("findRange() ok = true for missing file, want false")
	}
}
