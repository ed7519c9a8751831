package engine

// Window is a daily hour range [Start, End). End < Start wraps past midnight;
// Start == End is empty.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Hours expands the window into its hours of day
func (w Window) Hours() []int {
	return WindowHours(w.Start, w.End)
}

// Contains reports whether hour h falls inside the window
func (w Window) Contains(h int) bool {
	s, e := clampHour(w.Start), clampHour(w.End)
	h = clampHour(h)
	switch {
	case s == e:
		return false
	case s < e:
		return h >= s && h < e
	default:
		return h >= s || h < e
	}
}

// WindowHours returns the hours (0-23) covered by [start, end). 20 -> 2 covers
// 20, 21, 22, 23, 0, 1.
func WindowHours(start, end int) []int {
	s, e := clampHour(start), clampHour(end)
	if s == e {
		return nil
	}
	if s < e {
		hours := make([]int, 0, e-s)
		for h := s; h < e; h++ {
			hours = append(hours, h)
		}
		return hours
	}
	hours := make([]int, 0, 24-s+e)
	for h := s; h < 24; h++ {
		hours = append(hours, h)
	}
	for h := 0; h < e; h++ {
		hours = append(hours, h)
	}
	return hours
}

// HoursFrom returns duration consecutive hours starting at start, wrapping
// past midnight. Durations beyond a day cover the whole day once.
func HoursFrom(start, duration int) []int {
	if duration <= 0 {
		return nil
	}
	if duration > 24 {
		duration = 24
	}
	s := clampHour(start)
	hours := make([]int, duration)
	for i := range hours {
		hours[i] = (s + i) % 24
	}
	return hours
}

// Split divides kwh between on-peak and off-peak assuming uniform draw across
// the active window. An empty active window yields (0, 0).
func Split(kwh float64, active, peak Window) (on, off float64) {
	return SplitHours(kwh, active.Hours(), peak)
}

// SplitHours is Split over an explicit list of active hours
func SplitHours(kwh float64, hours []int, peak Window) (on, off float64) {
	if len(hours) == 0 {
		return 0, 0
	}
	per := kwh / float64(len(hours))
	for _, h := range hours {
		if peak.Contains(h) {
			on += per
		}
	}
	return on, kwh - on
}

func clampHour(h int) int {
	if h < 0 {
		return 0
	}
	if h > 23 {
		return 23
	}
	return h
}
