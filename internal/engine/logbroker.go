package engine

import "sync"

// subscriberBufferSize is the channel buffer for each progress subscriber.
// Lines are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// LogBroker fans out per-task progress lines to subscribers.
// It is safe for concurrent use.
//
// Finished streams are retained as closed markers so that late subscribers
// (those arriving after a task reached a terminal status) receive a closed
// channel instead of blocking forever. Each marker is a few bytes, which is
// acceptable for the expected task volume.
type LogBroker struct {
	mu      sync.Mutex
	streams map[string]*progressStream
}

type progressStream struct {
	subs   map[int]chan string
	nextID int
	closed bool
}

// NewLogBroker creates a new progress broker.
func NewLogBroker() *LogBroker {
	return &LogBroker{
		streams: make(map[string]*progressStream),
	}
}

// Subscribe returns a channel that receives progress lines for the given
// task and an unsubscribe function. If the task has already finished (Close
// was called), the returned channel is immediately closed.
func (b *LogBroker) Subscribe(taskID string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[taskID]
	if !ok {
		st = &progressStream{subs: make(map[int]chan string)}
		b.streams[taskID] = st
	}

	ch := make(chan string, subscriberBufferSize)
	if st.closed {
		close(ch)
		return ch, func() {}
	}

	id := st.nextID
	st.nextID++
	st.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(st.subs, id)
	}
}

// Publish sends a progress line to all subscribers of the given task.
// Lines are dropped for subscribers whose buffers are full.
func (b *LogBroker) Publish(taskID string, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[taskID]
	if !ok || st.closed {
		return
	}

	for _, ch := range st.subs {
		select {
		case ch <- line:
		default:
			// Drop the line for slow subscribers to avoid blocking execution.
		}
	}
}

// Close signals that no more progress will be published for the given task.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *LogBroker) Close(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[taskID]
	if !ok {
		// Leave a closed marker so late subscribers get a closed channel.
		b.streams[taskID] = &progressStream{subs: make(map[int]chan string), closed: true}
		return
	}

	st.closed = true
	for id, ch := range st.subs {
		close(ch)
		delete(st.subs, id)
	}
}
