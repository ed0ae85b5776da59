package pipeline

import (
	"testing"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
)

func TestAttributesCellNotifiesOnChange(t *testing.T) {
	cell := NewAttributesCell()
	updates, cancel := cell.Subscribe()
	defer cancel()

	a := model.ExtractedAttributes{Age: 30, Gender: "male", Mood: "happy", HasMood: true}
	if !cell.Set(a) {
		t.Fatal("first Set reported no change")
	}

	// Same attributes at a later time are not a change
	b := a
	b.Timestamp = time.Now()
	if cell.Set(b) {
		t.Fatal("identical attributes reported as a change")
	}

	select {
	case got := <-updates:
		if got.Mood != "happy" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	select {
	case got := <-updates:
		t.Fatalf("unexpected second notification %+v", got)
	default:
	}

	if cell.Version() != 1 {
		t.Fatalf("version = %d, want 1", cell.Version())
	}
}

func TestAttributesCellLatestWins(t *testing.T) {
	cell := NewAttributesCell()
	updates, cancel := cell.Subscribe()
	defer cancel()

	for age := 1; age <= 5; age++ {
		cell.Set(model.ExtractedAttributes{Age: age})
	}

	got := <-updates
	if got.Age != 5 {
		t.Fatalf("slow subscriber got age %d, want 5", got.Age)
	}
}

func TestAttributesCellCancel(t *testing.T) {
	cell := NewAttributesCell()
	updates, cancel := cell.Subscribe()
	cancel()
	cancel()

	if _, ok := <-updates; ok {
		t.Fatal("channel still open after cancel")
	}
	cell.Set(model.ExtractedAttributes{Age: 1})
}
