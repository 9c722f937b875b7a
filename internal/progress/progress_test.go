package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_MapsRelativeToSpan(t *testing.T) {
	var got []Status
	reporter := ReporterFunc(func(s Status) { got = append(got, s) })

	tracker := NewTracker(reporter, 0.25, 0.25)
	tracker.Update(0, "starting")
	tracker.Update(0.5, "halfway")
	tracker.Update(1, "done")

	assert.Equal(t, []Status{
		{Progress: 0.25, Message: "starting"},
		{Progress: 0.375, Message: "halfway"},
		{Progress: 0.5, Message: "done"},
	}, got)
}

func TestTracker_ClampsInput(t *testing.T) {
	tracker := NewTracker(nil, 0.5, 0.5)

	tracker.Update(-1, "below")
	assert.Equal(t, 0.5, tracker.Last().Progress)

	tracker.Update(2, "above")
	assert.Equal(t, 1.0, tracker.Last().Progress)
}

func TestStatus_Percent(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		want     int
	}{
		{"zero", 0, 0},
		{"complete", 1, 100},
		{"rounds down", 0.374, 37},
		{"rounds up", 0.375, 38},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status{Progress: tt.progress}.Percent())
		})
	}
}

func TestTracker_NilSafe(t *testing.T) {
	var tracker *Tracker
	tracker.Update(0.5, "ignored")
	assert.Equal(t, Status{}, tracker.Last())
}
