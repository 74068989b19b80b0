package probability

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestShapeKeepsServiceOrder(t *testing.T) {
	var m Mapping
	body := `{"Happy":0.923,"Sad":0.04,"Angry":0.037}`
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := Shape(&m)
	want := []Entry{
		{Class: "Happy", Value: 0.923, Percent: "92.30"},
		{Class: "Sad", Value: 0.04, Percent: "4.00"},
		{Class: "Angry", Value: 0.037, Percent: "3.70"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected entries:\n got  %+v\n want %+v", got, want)
	}
}

func TestShapeDoesNotSortByMagnitude(t *testing.T) {
	var m Mapping
	body := `{"surprise":0.01,"angry":0.2,"neutral":0.09,"happy":0.7}`
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var classes []string
	for _, e := range Shape(&m) {
		classes = append(classes, e.Class)
	}
	want := []string{"surprise", "angry", "neutral", "happy"}
	if !reflect.DeepEqual(classes, want) {
		t.Fatalf("order changed: %v", classes)
	}
}

func TestShapeIsIdempotent(t *testing.T) {
	m := NewMapping(Pair{"fear", 0.3333}, Pair{"disgust", 0.6667})
	first := Shape(m)
	second := Shape(m)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("outputs differ: %v vs %v", first, second)
	}
	if m.Len() != 2 {
		t.Fatalf("input mutated, len=%d", m.Len())
	}
}

func TestShapeEmpty(t *testing.T) {
	if got := Shape(nil); len(got) != 0 {
		t.Fatalf("expected no entries, got %v", got)
	}
	if got := Shape(&Mapping{}); len(got) != 0 {
		t.Fatalf("expected no entries, got %v", got)
	}
}

func TestFormatPercent(t *testing.T) {
	cases := map[float64]string{
		0.8765: "87.65",
		0.923:  "92.30",
		0.04:   "4.00",
		0:      "0.00",
		1:      "100.00",
		1.5:    "150.00",
		-0.25:  "-25.00",
	}
	for in, want := range cases {
		if got := FormatPercent(in); got != want {
			t.Errorf("FormatPercent(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestMappingRoundTripKeepsOrder(t *testing.T) {
	m := NewMapping(Pair{"sad", 0.1}, Pair{"angry", 0.2}, Pair{"sad", 0.3})
	if m.Len() != 2 {
		t.Fatalf("expected duplicate class to collapse, len=%d", m.Len())
	}
	if v, _ := m.Get("sad"); v != 0.3 {
		t.Fatalf("expected last value to win, got %v", v)
	}
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"sad":0.3,"angry":0.2}` {
		t.Fatalf("unexpected json: %s", out)
	}
}

func TestMappingRejectsNonObject(t *testing.T) {
	var m Mapping
	if err := json.Unmarshal([]byte(`[0.1,0.2]`), &m); err == nil {
		t.Fatal("expected error for array payload")
	}
}
