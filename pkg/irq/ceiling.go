package irq

// Ceiling is a priority-ceiling critical section. While locked, no line at or
// below its priority can be dispatched; lines above it still preempt.
type Ceiling struct {
	ctl  *Controller
	prio Priority
}

// Priority returns the ceiling priority.
func (cs Ceiling) Priority() Priority { return cs.prio }

// Lock runs fn with the ceiling raised. The previous mask is restored on every
// exit path, and lines that became pending while masked are serviced before
// Lock returns normally.
func (cs Ceiling) Lock(fn func()) {
	c := cs.ctl
	prev := c.ceiling
	func() {
		if cs.prio > prev {
			c.ceiling = cs.prio
		}
		defer func() { c.ceiling = prev }()
		fn()
	}()
	c.Poll()
}

// Masked returns the current mask level.
func (c *Controller) Masked() Priority { return c.ceiling }
