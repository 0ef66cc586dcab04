package capsule

import (
	"reflect"
	"strings"
	"testing"
)

func TestMock_Deterministic(t *testing.T) {
	for _, fossil := range []bool{false, true} {
		a := Mock(-44, fossil)
		b := Mock(-44, fossil)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Mock(-44, %v) is not deterministic", fossil)
		}
	}
}

func TestMock_ValidShapes(t *testing.T) {
	years := []int{-500, -1, 1, 1500, 2026, 2100}
	for _, y := range years {
		for _, fossil := range []bool{false, true} {
			d := Mock(y, fossil)
			if err := d.Validate(); err != nil {
				t.Errorf("Mock(%d, %v).Validate() = %v", y, fossil, err)
			}
			if d.Year != y {
				t.Errorf("Mock(%d).Year = %d", y, d.Year)
			}
			if d.ModelURL != "" {
				t.Errorf("Mock(%d).ModelURL = %q, want empty (placeholder subject)", y, d.ModelURL)
			}
			if d.GeneratedAt != MockGeneratedAt {
				t.Errorf("Mock(%d).GeneratedAt = %q", y, d.GeneratedAt)
			}
		}
	}
}

func TestMock_History(t *testing.T) {
	d := Mock(-300, false)
	if d.Kind != KindHistory || d.Mode != "" {
		t.Fatalf("history mock kind=%q mode=%q", d.Kind, d.Mode)
	}
	if d.YearDisplay != "300 BCE" {
		t.Errorf("YearDisplay = %q", d.YearDisplay)
	}
	if !strings.Contains(d.Events[0].Title, "300 BCE") {
		t.Errorf("event title should mention the year: %q", d.Events[0].Title)
	}
}

func TestMock_Fossil(t *testing.T) {
	d := Mock(2077, true)
	if d.Kind != KindFossil || d.Mode != ModeMisread {
		t.Fatalf("fossil mock kind=%q mode=%q", d.Kind, d.Mode)
	}
	if !strings.Contains(d.ArchaeologistReport, "XA-2077-07") {
		t.Errorf("report should carry the specimen number: %q", d.ArchaeologistReport)
	}
}
