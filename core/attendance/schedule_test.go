package attendance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: TimeOfDay{9, 0}},
		{in: "9:05", want: TimeOfDay{9, 5}},
		{in: " 23:59 ", want: TimeOfDay{23, 59}},
		{in: "00:00", want: TimeOfDay{0, 0}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "1200", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeSlot(t *testing.T) {
	w, err := ParseTimeSlot("09:00 - 10:30")
	require.NoError(t, err)
	assert.Equal(t, Window{Start: TimeOfDay{9, 0}, End: TimeOfDay{10, 30}}, w)
	assert.Equal(t, "09:00 - 10:30", w.String())

	for _, in := range []string{"", "09:00", "10:30 - 09:00", "09:00 - 09:00", "09:00 - 10:30 - 11:00", "9h - 10h"} {
		_, err := ParseTimeSlot(in)
		assert.Error(t, err, in)
	}
}

func TestWeekday(t *testing.T) {
	for in, want := range map[string]Weekday{"Monday": Monday, "sunday": Sunday, " FRIDAY ": Friday} {
		got, err := ParseWeekday(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseWeekday("Mon")
	assert.Error(t, err)

	// 2026-10-12 is a Monday
	for i := 0; i < 7; i++ {
		assert.Equal(t, Weekday(i+1), WeekdayOf(time.Date(2026, time.October, 12+i, 12, 0, 0, 0, time.UTC)))
	}
}

func TestScheduleJSON(t *testing.T) {
	type lecture struct {
		Start TimeOfDay `json:"start_time"`
		Day   Weekday   `json:"day"`
	}
	b, err := json.Marshal(lecture{Start: TimeOfDay{9, 0}, Day: Thursday})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start_time":"09:00","day":"Thursday"}`, string(b))

	var got lecture
	require.NoError(t, json.Unmarshal([]byte(`{"start_time":"14:15","day":"saturday"}`), &got))
	assert.Equal(t, lecture{Start: TimeOfDay{14, 15}, Day: Saturday}, got)

	assert.Error(t, json.Unmarshal([]byte(`{"day":"noday"}`), &got))
}
