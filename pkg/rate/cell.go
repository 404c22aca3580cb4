package rate

// Locker runs fn with the cell's writer masked. irq.Ceiling implements it.
type Locker interface {
	Lock(fn func())
}

// lanes is the number of bytes the target stores separately. Every lane is
// committed on its own instruction boundary, so an unmasked reader can
// observe a mixture of two writes.
const lanes = 4

type cell struct {
	lanes    [lanes]uint8
	boundary func()
}

// Writer is the only handle that can change the shared rate. It must be used
// from the highest-priority user of the cell.
type Writer struct {
	c *cell
}

// Reader is the only handle that can observe the shared rate. Every load is
// made inside its Locker.
type Reader struct {
	c     *cell
	guard Locker
}

// New creates a shared rate cell holding initial and returns its single
// writer and single reader. boundary is called between lane accesses and is
// where pending higher-priority work may preempt; it may be nil.
func New(initial uint32, boundary func(), guard Locker) (*Writer, *Reader) {
	if boundary == nil {
		boundary = func() {}
	}
	c := &cell{boundary: boundary}
	for i := range lanes {
		c.lanes[i] = uint8(initial >> (8 * i))
	}
	return &Writer{c: c}, &Reader{c: c, guard: guard}
}

// Publish stores hz. Last write wins.
func (w *Writer) Publish(hz uint32) {
	for i := range lanes {
		w.c.lanes[i] = uint8(hz >> (8 * i))
		w.c.boundary()
	}
}

// Load returns the most recently published rate.
func (r *Reader) Load() uint32 {
	var hz uint32
	r.guard.Lock(func() {
		hz = r.c.load()
	})
	return hz
}

func (c *cell) load() uint32 {
	var v uint32
	for i := range lanes {
		v |= uint32(c.lanes[i]) << (8 * i)
		c.boundary()
	}
	return v
}
