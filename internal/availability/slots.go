package availability

import "time"

// Slots returns the ordered candidate slot-start instants for a date. The
// sequence is a pure function of the calendar and the date: empty on
// non-working days and holidays, otherwise every quantized start where a full
// slot still fits before the end of the window (t + slot <= end).
func Slots(c *Calendar, date time.Time) []time.Time {
	window, ok := c.WindowFor(date)
	if !ok {
		return nil
	}

	step := c.SlotSize()
	var slots []time.Time
	for t := window.Start; !t.Add(step).After(window.End); t = t.Add(step) {
		slots = append(slots, t)
	}
	return slots
}
