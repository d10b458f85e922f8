package reservation

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MatchWindowMinutes is the maximum distance from a preferred time a
// slot may have and still rank. The boundary is inclusive.
const MatchWindowMinutes = 15

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"3:04PM",
}

// MinutesOfDay normalizes a clock string to minutes since midnight.
// Accepts 24-hour ("19:05", "19:05:00") and 12-hour ("7:05 PM", "7:05pm")
// forms; "7:05 PM" and "19:05" both normalize to 1145.
func MinutesOfDay(s string) (int, error) {
	s = strings.TrimSpace(s)
	// time.Parse matches the meridiem case-sensitively
	if n := len(s); n >= 2 {
		if m := strings.ToUpper(s[n-2:]); m == "AM" || m == "PM" {
			s = s[:n-2] + m
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q", s)
}

// FilterByType keeps slots whose type is in the requested set,
// case-insensitively. An empty set passes every slot unchanged.
func FilterByType(slots []Slot, types []string) []Slot {
	if len(types) == 0 {
		return slots
	}
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[strings.ToLower(strings.TrimSpace(t))] = true
	}
	var out []Slot
	for _, s := range slots {
		if want[strings.ToLower(s.Type)] {
			out = append(out, s)
		}
	}
	return out
}

// RankByTime keeps slots within MatchWindowMinutes of any preferred time
// and sorts them ascending by that distance, preserving provider order on
// ties. With no preferred times the input passes through unranked. Slots
// whose display time cannot be parsed are dropped only when ranking
// applies.
func RankByTime(slots []Slot, preferred []string) []Slot {
	prefs := make([]int, 0, len(preferred))
	for _, p := range preferred {
		m, err := MinutesOfDay(p)
		if err != nil {
			continue
		}
		prefs = append(prefs, m)
	}
	if len(prefs) == 0 {
		return slots
	}

	type ranked struct {
		slot Slot
		dist int
	}
	var keep []ranked
	for _, s := range slots {
		m, err := MinutesOfDay(s.DisplayTime)
		if err != nil {
			continue
		}
		best := -1
		for _, p := range prefs {
			d := m - p
			if d < 0 {
				d = -d
			}
			if best < 0 || d < best {
				best = d
			}
		}
		if best <= MatchWindowMinutes {
			keep = append(keep, ranked{slot: s, dist: best})
		}
	}
	sort.SliceStable(keep, func(i, j int) bool { return keep[i].dist < keep[j].dist })

	out := make([]Slot, len(keep))
	for i, r := range keep {
		out[i] = r.slot
	}
	return out
}

// Match composes the filters the way callers book: drop unbookable
// quantities, filter by type, then rank by time. When the time filter
// empties a non-empty type-filtered list, the type-filtered list is
// returned instead so marginal matches still surface.
func Match(slots []Slot, preferred, types []string) []Slot {
	var bookable []Slot
	for _, s := range slots {
		if s.Quantity > 0 {
			bookable = append(bookable, s)
		}
	}
	byType := FilterByType(bookable, types)
	if len(byType) == 0 {
		return nil
	}
	ranked := RankByTime(byType, preferred)
	if len(ranked) == 0 {
		return byType
	}
	return ranked
}
