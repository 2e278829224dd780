package sandbox

import (
	"container/heap"
	"context"
	"time"

	"github.com/dop251/goja"
)

// timer is one scheduled setTimeout or setInterval callback.
type timer struct {
	id       int64
	seq      int64
	when     time.Time
	interval time.Duration
	repeat   bool
	fn       goja.Callable
	args     []goja.Value
	index    int
}

// timerQueue orders timers by due time, then by scheduling order.
type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }
func (q timerQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}
func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *timerQueue) Push(x any) {
	t := x.(*timer)
	t.index = len(*q)
	*q = append(*q, t)
}
func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// eventLoop runs timer callbacks for one engine until none are pending.
// Promise jobs are drained by the engine each time control returns from a
// callback, so only timers need tracking here. All methods run on the
// goroutine that owns the engine.
type eventLoop struct {
	vm     *goja.Runtime
	queue  timerQueue
	byID   map[int64]*timer
	nextID int64
	seq    int64
}

func newEventLoop(vm *goja.Runtime) *eventLoop {
	return &eventLoop{vm: vm, byID: make(map[int64]*timer)}
}

// install defines the timer globals.
func (l *eventLoop) install() error {
	globals := map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":     l.schedule(false),
		"setInterval":    l.schedule(true),
		"clearTimeout":   l.clear,
		"clearInterval":  l.clear,
		"setImmediate":   l.immediate,
		"clearImmediate": l.clear,
	}
	for name, fn := range globals {
		if err := l.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (l *eventLoop) schedule(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(l.vm.NewTypeError("callback must be a function"))
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}
		return l.vm.ToValue(l.add(fn, delay, repeat, args))
	}
}

func (l *eventLoop) immediate(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(l.vm.NewTypeError("callback must be a function"))
	}
	var args []goja.Value
	if len(call.Arguments) > 1 {
		args = append(args, call.Arguments[1:]...)
	}
	return l.vm.ToValue(l.add(fn, 0, false, args))
}

func (l *eventLoop) add(fn goja.Callable, delay time.Duration, repeat bool, args []goja.Value) int64 {
	// same floor as browsers and Node
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	l.nextID++
	l.seq++
	t := &timer{
		id:       l.nextID,
		seq:      l.seq,
		when:     time.Now().Add(delay),
		interval: delay,
		repeat:   repeat,
		fn:       fn,
		args:     args,
	}
	heap.Push(&l.queue, t)
	l.byID[t.id] = t
	return t.id
}

func (l *eventLoop) clear(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := l.byID[id]; ok {
		delete(l.byID, id)
		if t.index >= 0 {
			heap.Remove(&l.queue, t.index)
		}
	}
	return goja.Undefined()
}

// Pending returns the number of scheduled timers.
func (l *eventLoop) Pending() int {
	return len(l.byID)
}

// Run fires timers in due order until none remain. It returns the first
// error a callback throws, or ctx.Err() when the context ends first.
func (l *eventLoop) Run(ctx context.Context) error {
	wait := time.NewTimer(time.Hour)
	defer wait.Stop()

	for l.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		next := l.queue[0]
		if d := time.Until(next.when); d > 0 {
			if !wait.Stop() {
				select {
				case <-wait.C:
				default:
				}
			}
			wait.Reset(d)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wait.C:
			}
		}

		heap.Pop(&l.queue)
		if next.repeat {
			next.seq = l.seq + 1
			l.seq++
			next.when = time.Now().Add(next.interval)
			heap.Push(&l.queue, next)
		} else {
			delete(l.byID, next.id)
		}

		if _, err := next.fn(goja.Undefined(), next.args...); err != nil {
			return err
		}
	}
	return nil
}
