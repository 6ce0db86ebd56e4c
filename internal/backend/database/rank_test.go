package database

import (
	"sort"
	"testing"
)

func TestNext(t *testing.T) {
	if got := Next(""); got != "U" {
		t.Fatalf("Next(\"\") = %q, want %q", got, "U")
	}
	tests := []struct{ prev, want string }{
		{"U", "U001"},
		{"U001", "U002"},
		{"U00z", "U01"},
		{"Uzzz", "V"},
		{"k000U", "k000V"},
		{"zzzz", "zzzzU"},
	}
	for _, tt := range tests {
		if got := Next(tt.prev); got != tt.want {
			t.Errorf("Next(%q) = %q, want %q", tt.prev, got, tt.want)
		}
	}
}

func TestNext_RanksStayShort(t *testing.T) {
	rank := ""
	for i := 0; i < 100000; i++ {
		next := Next(rank)
		if next <= rank {
			t.Fatalf("step %d: Next(%q) = %q does not sort after it", i, rank, next)
		}
		if len(next) > rankWidth {
			t.Fatalf("step %d: rank %q longer than %d characters", i, next, rankWidth)
		}
		rank = next
	}
}

func TestBetween(t *testing.T) {
	tests := []struct{ prev, next string }{
		{"A", "C"},
		{"A", "B"},
		{"", "U"},
		{"U", "UU"},
		{"0", "1"},
	}
	for _, tt := range tests {
		got := Between(tt.prev, tt.next)
		if !(got > tt.prev && got < tt.next) {
			t.Errorf("Between(%q, %q) = %q, want strictly between", tt.prev, tt.next, got)
		}
	}
	if got := Between("U", ""); got != "U001" {
		t.Errorf("Between(\"U\", \"\") = %q, want %q", got, "U001")
	}
}

func TestIsBetween(t *testing.T) {
	if !IsBetween("A", "B", "C") {
		t.Error("expected B between A and C")
	}
	if IsBetween("A", "A", "C") {
		t.Error("expected bounds to be exclusive")
	}
	if !IsBetween("", "A", "B") || !IsBetween("A", "B", "") {
		t.Error("expected open bounds to accept")
	}
	if IsBetween("", "A", "") {
		t.Error("expected no bounds to reject")
	}
}

func applyOrder(t *testing.T, existing map[string]string, order []string) {
	t.Helper()
	for id, rank := range Reorder(existing, order) {
		existing[id] = rank
	}
	ids := make([]string, 0, len(existing))
	for id := range existing {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return existing[ids[i]] < existing[ids[j]] })
	for i := range order {
		if ids[i] != order[i] {
			t.Fatalf("expected order %v, got %v (ranks %v)", order, ids, existing)
		}
	}
}

func TestReorder_NoChange(t *testing.T) {
	existing := map[string]string{"a": "A", "b": "B", "c": "C"}
	if updates := Reorder(existing, []string{"a", "b", "c"}); len(updates) != 0 {
		t.Fatalf("expected no updates, got %v", updates)
	}
}

func TestReorder_Moves(t *testing.T) {
	existing := map[string]string{"a": "U", "b": "UU", "c": "UUU", "d": "UUUU"}

	applyOrder(t, existing, []string{"b", "a", "c", "d"})
	applyOrder(t, existing, []string{"b", "a", "d", "c"})
	applyOrder(t, existing, []string{"c", "b", "a", "d"})
	applyOrder(t, existing, []string{"d", "c", "b", "a"})
}

func TestReorder_TightRanks(t *testing.T) {
	existing := map[string]string{"a": "0", "b": "1"}
	applyOrder(t, existing, []string{"b", "a"})
}
