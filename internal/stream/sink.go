package stream

import "github.com/colonyops/resumepilot/internal/core/task"

// Sink receives the events of one stream session, in arrival order, from a
// single goroutine.
type Sink interface {
	OnProgress(ev task.StreamEvent)
	OnChunk(ev task.StreamEvent)
	OnResult(ev task.StreamEvent)
	OnError(err error)
}

// Funcs adapts optional closures to Sink. Nil fields ignore their events.
type Funcs struct {
	Progress func(task.StreamEvent)
	Chunk    func(task.StreamEvent)
	Result   func(task.StreamEvent)
	Error    func(error)
}

var _ Sink = Funcs{}

func (f Funcs) OnProgress(ev task.StreamEvent) {
	if f.Progress != nil {
		f.Progress(ev)
	}
}

func (f Funcs) OnChunk(ev task.StreamEvent) {
	if f.Chunk != nil {
		f.Chunk(ev)
	}
}

func (f Funcs) OnResult(ev task.StreamEvent) {
	if f.Result != nil {
		f.Result(ev)
	}
}

func (f Funcs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
