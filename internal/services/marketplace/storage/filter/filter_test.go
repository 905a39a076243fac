package filter

import (
	"reflect"
	"testing"
	"time"
)

func TestParseListingFilter_ModeEquals(t *testing.T) {
	cond, err := ParseListingFilter(`mode = "loan"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "mode = ?" {
		t.Errorf("expected 'mode = ?', got %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"loan"}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseListingFilter_Empty(t *testing.T) {
	cond, err := ParseListingFilter(" ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if !cond.Empty() || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseListingFilter_AndOr(t *testing.T) {
	cond, err := ParseListingFilter(`mode = "sale" AND owner_id = "u1"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(mode = ? AND owner_id = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"sale", "u1"}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = ParseListingFilter(`owner_id = "u1" OR owner_id = "u2"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(owner_id = ? OR owner_id = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseListingFilter_PriceConvertsToCents(t *testing.T) {
	cond, err := ParseListingFilter(`price < 30.5`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "price_cents < ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{int64(3050)}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseListingFilter_CreateTimeConvertsToMillis(t *testing.T) {
	cond, err := ParseListingFilter(`create_time > timestamp("2026-01-01T00:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "created_at > ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	want := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if !reflect.DeepEqual(cond.Params, []any{want}) {
		t.Fatalf("Params = %v, want [%d]", cond.Params, want)
	}
}

func TestParseListingFilter_InvalidField(t *testing.T) {
	if _, err := ParseListingFilter(`title = "Drill"`); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseListingFilter_InvalidTimestamp(t *testing.T) {
	if _, err := ParseListingFilter(`create_time = timestamp("not-a-time")`); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}

func TestSQLConditionNumbered(t *testing.T) {
	cond := SQLCondition{Clause: "(mode = ? AND owner_id = ?)", Params: []any{"sale", "u1"}}
	if got := cond.Numbered(3); got != "(mode = $3 AND owner_id = $4)" {
		t.Fatalf("Numbered = %q", got)
	}
}

func TestToCents(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{in: 25.0, want: 2500},
		{in: 0.1, want: 10},
		{in: int64(4), want: 400},
		{in: uint64(2), want: 200},
	}
	for _, tc := range tests {
		got, err := toCents(tc.in)
		if err != nil {
			t.Fatalf("toCents(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("toCents(%v) = %v, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := toCents("x"); err == nil {
		t.Fatal("expected error for non-numeric price")
	}
}
