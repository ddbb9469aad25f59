package holiday

// NoHoliday is the reserved code for dates that are not holidays.
const NoHoliday = 0

// Codes maps holiday names to small positive integer codes. Codes are
// allocated in first-encountered order within one process; a rebuilt store
// may reassign them.
type Codes struct {
	byName map[string]int
	next   int
}

// NewCodes creates a registry with code 0 reserved.
func NewCodes() *Codes {
	return &Codes{byName: make(map[string]int), next: 1}
}

// Code returns the registered code for a holiday name, allocating the next
// unused positive integer on first encounter. The empty name always maps to
// NoHoliday.
func (c *Codes) Code(name string) int {
	if name == "" {
		return NoHoliday
	}
	if code, ok := c.byName[name]; ok {
		return code
	}
	code := c.next
	c.byName[name] = code
	c.next++
	return code
}

// Name returns the registered name for a code, or "" for NoHoliday and
// unknown codes.
func (c *Codes) Name(code int) string {
	for name, v := range c.byName {
		if v == code {
			return name
		}
	}
	return ""
}

// Seed registers names in the given order, typically the distinct holiday
// names scanned from a persisted summary table.
func (c *Codes) Seed(names []string) {
	for _, name := range names {
		c.Code(name)
	}
}

// Len reports how many names have been assigned codes.
func (c *Codes) Len() int {
	return len(c.byName)
}
