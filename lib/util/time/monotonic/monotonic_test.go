package monotonic

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// Clock
// =============================================================================

func TestClock_Offset(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Offset())

	before := time.Now()
	c.SetOffset(time.Hour)
	assert.Equal(t, time.Hour, c.Offset())
	assert.True(t, c.Now().After(before.Add(59*time.Minute)))
}

func TestClock_ConcurrentAccess(t *testing.T) {
	c := NewClock()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.SetOffset(time.Duration(i) * time.Millisecond)
		}(i)
		go func() {
			defer wg.Done()
			_ = c.Now()
		}()
	}
	wg.Wait()
}

// =============================================================================
// Manual
// =============================================================================

func TestManual(t *testing.T) {
	m := NewManual(testNow)
	assert.Equal(t, testNow, m.Now())

	assert.Equal(t, testNow.Add(time.Minute), m.Advance(time.Minute))
	m.Advance(-time.Hour)
	assert.Equal(t, testNow.Add(time.Minute), m.Now())

	m.Set(testNow)
	assert.Equal(t, testNow.Add(time.Minute), m.Now(), "Set never moves backwards")
	m.Set(testNow.Add(time.Hour))
	assert.Equal(t, testNow.Add(time.Hour), m.Now())
}

// =============================================================================
// NTP
// =============================================================================

func goodResponse(offset time.Duration) *ntp.Response {
	return &ntp.Response{
		Time:        testNow,
		ClockOffset: offset,
		RTT:         20 * time.Millisecond,
		Stratum:     2,
	}
}

func TestClock_Sync(t *testing.T) {
	var asked []string
	query := func(host string, _ ntp.QueryOptions) (*ntp.Response, error) {
		asked = append(asked, host)
		switch host {
		case "down.example":
			return nil, errors.New("timeout")
		case "liar.example":
			return &ntp.Response{Time: testNow, Stratum: 0}, nil
		}
		return goodResponse(3 * time.Second), nil
	}

	c := NewClock()
	require.NoError(t, c.Sync(query, []string{"down.example", "liar.example", "good.example", "unused.example"}, time.Second))
	assert.Equal(t, 3*time.Second, c.Offset())
	assert.Equal(t, []string{"down.example", "liar.example", "good.example"}, asked)
}

func TestClock_SyncKeepsOffsetOnFailure(t *testing.T) {
	query := func(string, ntp.QueryOptions) (*ntp.Response, error) {
		return goodResponse(time.Hour), nil
	}
	c := NewClock()
	c.SetOffset(time.Second)
	err := c.Sync(query, []string{"far.example"}, time.Second)
	assert.ErrorIs(t, err, ERR_NO_NTP_RESPONSE)
	assert.Equal(t, time.Second, c.Offset())
}

func TestValidateResponse(t *testing.T) {
	cases := []struct {
		name  string
		tweak func(*ntp.Response)
		ok    bool
	}{
		{"good", func(*ntp.Response) {}, true},
		{"not in sync", func(r *ntp.Response) { r.Leap = ntp.LeapNotInSync }, false},
		{"stratum 16", func(r *ntp.Response) { r.Stratum = 16 }, false},
		{"slow", func(r *ntp.Response) { r.RTT = 3 * time.Second }, false},
		{"zero time", func(r *ntp.Response) { r.Time = time.Time{} }, false},
		{"dispersion", func(r *ntp.Response) { r.RootDispersion = 2 * time.Second }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := goodResponse(time.Second)
			tc.tweak(r)
			assert.Equal(t, tc.ok, validateResponse(r) == nil)
		})
	}
}
