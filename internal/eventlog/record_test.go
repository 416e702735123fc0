package eventlog

import (
	"testing"
)

func TestParseSkipsPartialTrailingRecord(t *testing.T) {
	a, _ := EncodeRecord(ev("a"))
	b, _ := EncodeRecord(ev("b"))
	data := append(append([]byte{}, a...), b...)
	data = append(data, []byte(`{"name":"c","payl`)...)

	events := Parse(data)
	if len(events) != 2 {
		t.Fatalf("want 2 events, got %d", len(events))
	}
	if events[0].Name != "a" || events[1].Name != "b" {
		t.Errorf("unexpected events %v", events)
	}
}

func TestParseSkipsEmptyAndGarbage(t *testing.T) {
	a, _ := EncodeRecord(ev("a"))
	data := []byte("\n\n   \nnot json\n{}\n")
	data = append(data, a...)

	events := Parse(data)
	if len(events) != 1 || events[0].Name != "a" {
		t.Errorf("want only event a, got %v", events)
	}
}

func TestEncodeRecordEndsWithDelimiter(t *testing.T) {
	rec, err := EncodeRecord(ev("a"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if rec[len(rec)-1] != delimiter {
		t.Error("record does not end with the delimiter")
	}
	for _, c := range rec[:len(rec)-1] {
		if c == delimiter {
			t.Fatal("delimiter appears inside the record")
		}
	}
}

func TestSentinel(t *testing.T) {
	if !(Event{Name: ManualFlushEvent}).IsSentinel() {
		t.Error("manual flush event not recognized")
	}
	if ev("a").IsSentinel() {
		t.Error("regular event reported as sentinel")
	}
}
