package layout

import (
	"github.com/athapong/aio-osint/pkg/graph"
)

// Body is the simulation state of one node
type Body struct {
	ID     string           `json:"id"`
	Type   graph.EntityType `json:"type"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
	VX     float64          `json:"vx"`
	VY     float64          `json:"vy"`
	Radius float64          `json:"radius"`
	Pinned bool             `json:"pinned"`
}

// Frame is one complete simulation state: a body vector plus an id index.
// Frames are values; a tick reads one frame and returns the next.
type Frame struct {
	Bodies []Body `json:"bodies"`
	Tick   uint64 `json:"tick"`
	index  map[string]int
}

// NewFrame creates an empty frame with room for n bodies
func NewFrame(n int) *Frame {
	return &Frame{
		Bodies: make([]Body, 0, n),
		index:  make(map[string]int, n),
	}
}

func (f *Frame) add(b Body) {
	if _, exists := f.index[b.ID]; exists {
		return
	}
	f.Bodies = append(f.Bodies, b)
	f.index[b.ID] = len(f.Bodies) - 1
}

// Len returns the number of bodies
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Bodies)
}

// Index returns the position of the body with the given id
func (f *Frame) Index(id string) (int, bool) {
	if f == nil {
		return 0, false
	}
	if f.index == nil {
		f.reindex()
	}
	i, ok := f.index[id]
	return i, ok
}

// Body returns the body with the given id
func (f *Frame) Body(id string) (Body, bool) {
	i, ok := f.Index(id)
	if !ok {
		return Body{}, false
	}
	return f.Bodies[i], true
}

// Clone returns a deep copy that shares nothing with f
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Bodies: make([]Body, len(f.Bodies)),
		Tick:   f.Tick,
		index:  make(map[string]int, len(f.Bodies)),
	}
	copy(out.Bodies, f.Bodies)
	for i, b := range out.Bodies {
		out.index[b.ID] = i
	}
	return out
}

// Energy is the kinetic energy of the frame, the sum of squared speeds
func (f *Frame) Energy() float64 {
	if f == nil {
		return 0
	}
	energy := 0.0
	for _, b := range f.Bodies {
		energy += b.VX*b.VX + b.VY*b.VY
	}
	return energy
}

// reindex rebuilds the id index, e.g. after the frame was decoded from JSON
func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.Bodies))
	for i, b := range f.Bodies {
		f.index[b.ID] = i
	}
}
