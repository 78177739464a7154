package model

import (
	"testing"
	"time"
)

func TestFormatWireDate_NoZeroPadding(t *testing.T) {
	d := time.Date(2025, 9, 5, 0, 0, 0, 0, time.Local)
	got := FormatWireDate(d)
	// 月・日はゼロ埋めしない
	if got != "2025/9/5" {
		t.Errorf("FormatWireDate = %q, want %q", got, "2025/9/5")
	}
}

func TestFormatWireDate_TwoDigit(t *testing.T) {
	d := time.Date(2025, 12, 25, 0, 0, 0, 0, time.Local)
	got := FormatWireDate(d)
	if got != "2025/12/25" {
		t.Errorf("FormatWireDate = %q, want %q", got, "2025/12/25")
	}
}

func TestParseWireDate_RoundTrip(t *testing.T) {
	cases := []string{"2025/9/5", "2025/12/25", "2026/1/1"}
	for _, s := range cases {
		d, err := ParseWireDate(s)
		if err != nil {
			t.Fatalf("ParseWireDate(%q) error: %v", s, err)
		}
		if got := FormatWireDate(d); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestParseWireDate_Invalid(t *testing.T) {
	cases := []string{"", "2025-09-05", "not a date", "2025/13/1"}
	for _, s := range cases {
		if _, err := ParseWireDate(s); err == nil {
			t.Errorf("ParseWireDate(%q) should fail", s)
		}
	}
}

func TestMidnight_StripsTimeOfDay(t *testing.T) {
	d := time.Date(2025, 9, 10, 18, 30, 45, 123, time.Local)
	got := Midnight(d)
	want := time.Date(2025, 9, 10, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("Midnight = %v, want %v", got, want)
	}
}

func TestMenuRow_WireDate(t *testing.T) {
	row := MenuRow{Date: time.Date(2025, 9, 5, 0, 0, 0, 0, time.Local)}
	if got := row.WireDate(); got != "2025/9/5" {
		t.Errorf("WireDate = %q, want %q", got, "2025/9/5")
	}
}

func TestCheckStates_AbsentDateIsFalse(t *testing.T) {
	states := NewCheckStates()
	d := time.Date(2025, 9, 5, 0, 0, 0, 0, time.Local)
	if states.Get(d) {
		t.Error("absent date should be false")
	}
}

func TestCheckStates_SetAndGet(t *testing.T) {
	states := NewCheckStates()
	d := time.Date(2025, 9, 5, 0, 0, 0, 0, time.Local)

	states.Set(d, true)
	if !states.Get(d) {
		t.Error("Get should return true after Set(true)")
	}

	states.Set(d, false)
	if states.Get(d) {
		t.Error("Get should return false after Set(false)")
	}
}

func TestCheckStates_Reset(t *testing.T) {
	states := NewCheckStates()
	d := time.Date(2025, 9, 5, 0, 0, 0, 0, time.Local)
	states.Set(d, true)

	states.Reset()
	if states.Get(d) {
		t.Error("Reset should discard all entries")
	}
}

func TestMenuTable_PutAndGet(t *testing.T) {
	table := NewMenuTable()
	row := MenuRow{
		Date:     time.Date(2025, 9, 5, 0, 0, 0, 0, time.Local),
		Main:     "肉じゃが",
		Editable: true,
	}
	table.Put(row)

	got, ok := table.Get("2025/9/5")
	if !ok {
		t.Fatal("row should be found")
	}
	if got.Main != "肉じゃが" {
		t.Errorf("Main = %q, want %q", got.Main, "肉じゃが")
	}
	if !got.Editable {
		t.Error("Editable should be preserved")
	}
}

func TestMenuTable_GetUnknownDate(t *testing.T) {
	table := NewMenuTable()
	if _, ok := table.Get("2025/9/5"); ok {
		t.Error("unknown date should not be found")
	}
}

func TestMenuTable_Reset(t *testing.T) {
	table := NewMenuTable()
	table.Put(MenuRow{Date: time.Date(2025, 9, 5, 0, 0, 0, 0, time.Local)})

	table.Reset()
	if _, ok := table.Get("2025/9/5"); ok {
		t.Error("Reset should discard all rows")
	}
}
