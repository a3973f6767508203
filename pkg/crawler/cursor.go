package crawler

// Cursor tracks pagination for one session. It always starts at page one
// and ends Exhausted once the advance control is disabled.
type Cursor struct {
	Page      int
	RowCount  int
	Row       int
	exhausted bool
}

// NewCursor returns a cursor at page one
func NewCursor() *Cursor {
	return &Cursor{Page: 1}
}

// SetRowCount records a freshly read row count and rewinds to the first row
func (c *Cursor) SetRowCount(n int) {
	c.RowCount = n
	c.Row = 0
}

// RecordRows is the number of rows holding records. The last rendered row
// is never one, so it is excluded.
func (c *Cursor) RecordRows() int {
	if c.RowCount <= 1 {
		return 0
	}
	return c.RowCount - 1
}

// Advance moves to the next page, or marks the cursor exhausted when the
// advance control is disabled
func (c *Cursor) Advance(disabled bool) {
	if c.exhausted {
		return
	}
	if disabled {
		c.exhausted = true
		return
	}
	c.Page++
	c.RowCount = 0
	c.Row = 0
}

// Exhausted reports whether the last page has been processed
func (c *Cursor) Exhausted() bool {
	return c.exhausted
}

// State names the cursor state for logs
func (c *Cursor) State() string {
	if c.exhausted {
		return "exhausted"
	}
	return "at_page"
}
