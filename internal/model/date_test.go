package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	d, err = ParseDate("2024-02-29T13:45:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = ParseDate("2023-02-29")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseDate("yesterday")
	assert.ErrorIs(t, err, ErrValidation)

	for _, bad := range []string{"2024-03-01garbage", "2024-03-01T", "2024-03-01 10:00", "2024-3-1", ""} {
		_, err = ParseDate(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.January, 31)

	assert.Equal(t, "2024-02-01", d.AddDays(1).String())
	assert.Equal(t, "2024-01-30", d.AddDays(-1).String())
	assert.Equal(t, 30, d.AddDays(-30).DaysUntil(d))

	start := NewDate(2024, time.March, 1)
	assert.Equal(t, "2024-03-31", start.AddMonths(1).AddDays(-1).String())

	dates := DatesBetween(NewDate(2024, time.February, 27), NewDate(2024, time.March, 1))
	require.Len(t, dates, 4)
	assert.Equal(t, "2024-02-29", dates[2].String())
	assert.Empty(t, DatesBetween(start, start.AddDays(-1)))
}

func TestDateOfUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := time.Date(2024, time.March, 10, 1, 30, 0, 0, loc)
	assert.Equal(t, "2024-03-10", DateOf(ts).String())
}

func TestDateJSONAndSQL(t *testing.T) {
	var v struct {
		On  Date `json:"on"`
		Off Date `json:"off"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"on":"2024-03-10","off":null}`), &v))
	assert.Equal(t, "2024-03-10", v.On.String())
	assert.True(t, v.Off.IsZero())

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":"2024-03-10","off":null}`, string(raw))

	val, err := v.Off.Value()
	require.NoError(t, err)
	assert.Nil(t, val)

	var scanned Date
	require.NoError(t, scanned.Scan([]byte("2024-03-10")))
	assert.True(t, scanned.Equal(v.On))
	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())
	assert.Error(t, scanned.Scan(42))
}
