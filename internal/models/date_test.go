package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_ParseAndString(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d != NewDate(2024, time.February, 29) {
		t.Fatalf("parsed %+v", d)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("string = %q", d.String())
	}

	for _, bad := range []string{"", "2024-2-29", "2023-02-29", "29/02/2024", "2024-02-29T00:00:00Z"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDate_Arithmetic(t *testing.T) {
	d := NewDate(2024, time.December, 31)

	if got := d.AddDays(1); got != NewDate(2025, time.January, 1) {
		t.Fatalf("add 1 = %s", got)
	}
	if got := d.AddDays(-366); got != NewDate(2023, time.December, 31) {
		t.Fatalf("add -366 = %s", got)
	}
	if got := NewDate(2024, time.January, 32); got != NewDate(2024, time.February, 1) {
		t.Fatalf("normalized = %s", got)
	}

	start := NewDate(2024, time.January, 1)
	if got := d.DaysSince(start); got != 365 {
		t.Fatalf("days since = %d, want 365", got)
	}
	if got := start.DaysSince(d); got != -365 {
		t.Fatalf("days since reversed = %d, want -365", got)
	}

	if !start.Before(d) || start.After(d) || d.Before(d) || d.After(d) {
		t.Fatalf("ordering broken")
	}
}

func TestDate_DSTDoesNotSkewDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2024-03-10 is 23 hours long in New York.
	before := NewDate(2024, time.March, 10)
	if got := before.AddDays(1).DaysSince(before); got != 1 {
		t.Fatalf("days since = %d", got)
	}
	if got := DateOf(before.In(loc).Add(23 * time.Hour)); got != NewDate(2024, time.March, 11) {
		t.Fatalf("date of = %s", got)
	}
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Day  Date  `json:"day"`
		Opt  *Date `json:"opt"`
		None *Date `json:"none"`
	}
	opt := NewDate(2024, time.January, 1)

	data, err := json.Marshal(wrapper{Day: NewDate(2024, time.May, 6), Opt: &opt})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"day":"2024-05-06","opt":"2024-01-01","none":null}`
	if string(data) != want {
		t.Fatalf("marshal = %s, want %s", data, want)
	}

	var got wrapper
	if err := json.Unmarshal([]byte(`{"day":"not-a-date"}`), &got); err == nil {
		t.Fatalf("expected error for invalid date")
	}
}
