package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	At time.Time
	V  int
}

func TestAppend_EvictsOldestWhenFull(t *testing.T) {
	s := NewStore[point](3)
	key := Key{DeviceID: "r1", Series: "system"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Append(key, point{At: base.Add(time.Duration(i) * time.Minute), V: i})
	}

	got := s.Get(key)
	require.Len(t, got, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{got[0].V, got[1].V, got[2].V})
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].At.Before(got[i].At), "series must stay chronological")
	}
}

func TestAppend_LengthNeverExceedsMax(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		appends int
		want    int
	}{
		{"below capacity", 288, 10, 10},
		{"at capacity", 4, 4, 4},
		{"far over capacity", 4, 1000, 4},
		{"default when zero", 0, 300, DefaultMaxPoints},
		{"default when negative", -1, 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore[int](tt.max)
			key := Key{DeviceID: "d", Series: "x"}
			for i := 0; i < tt.appends; i++ {
				s.Append(key, i)
				if s.Len(key) > s.MaxPoints() {
					t.Fatalf("len %d exceeds max %d", s.Len(key), s.MaxPoints())
				}
			}
			assert.Equal(t, tt.want, s.Len(key))
		})
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewStore[int](10)
	key := Key{DeviceID: "d", Series: "x"}
	s.Append(key, 1)

	got := s.Get(key)
	got[0] = 99

	assert.Equal(t, []int{1}, s.Get(key))
	assert.Nil(t, s.Get(Key{DeviceID: "missing"}))
}

func TestPurgeDevice(t *testing.T) {
	s := NewStore[int](10)
	s.Append(Key{"a", "system"}, 1)
	s.Append(Key{"a", "interface:ether1"}, 1)
	s.Append(Key{"b", "system"}, 1)

	assert.ElementsMatch(t, []string{"interface:ether1"}, s.Series("a", "interface:"))
	assert.Equal(t, 2, s.PurgeDevice("a"))
	assert.Empty(t, s.Series("a", ""))
	assert.Equal(t, 1, s.Len(Key{"b", "system"}))
}
