package clock

import "time"

// FakeClock reports a fixed instant that tests move forward explicitly.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the reported time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// SetNow pins the reported time to t.
func (c *FakeClock) SetNow(t time.Time) {
	c.now = t.UTC()
}
