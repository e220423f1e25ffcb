package vm

// Thread owns one call stack. Frames are only touched by the goroutine
// running the thread.
type Thread struct {
	ID     int
	frames []*Frame
}

// NewThread creates a thread with an empty call stack.
func NewThread(id int) *Thread {
	return &Thread{ID: id}
}

// PushFrame makes f the current frame.
func (t *Thread) PushFrame(f *Frame) {
	t.frames = append(t.frames, f)
}

// PopFrame discards the current frame and returns it, or nil when the stack
// is empty.
func (t *Thread) PopFrame() *Frame {
	n := len(t.frames)
	if n == 0 {
		return nil
	}
	f := t.frames[n-1]
	t.frames[n-1] = nil
	t.frames = t.frames[:n-1]
	return f
}

// CurrentFrame returns the top frame, or nil when the stack is empty.
func (t *Thread) CurrentFrame() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// Depth returns the number of active frames.
func (t *Thread) Depth() int {
	return len(t.frames)
}
