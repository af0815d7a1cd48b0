package mqtt

import "log"

// pending is a serialized publish held while the broker is unreachable.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of publishes made while disconnected.
// When full the oldest entry is overwritten.
// Not safe for concurrent use; RealClient guards it with its mutex.
type outbox struct {
	slots   []pending
	next    int // next write position
	count   int
	dropped int // entries overwritten since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{slots: make([]pending, capacity)}
}

func (o *outbox) push(p pending) {
	size := len(o.slots)
	o.slots[o.next] = p
	o.next = (o.next + 1) % size
	if o.count < size {
		o.count++
		return
	}
	if o.dropped == 0 {
		log.Printf("mqtt: outbox full (%d messages), dropping oldest", size)
	}
	o.dropped++
}

// drain returns the queued publishes oldest first and empties the outbox.
func (o *outbox) drain() []pending {
	if o.count == 0 {
		return nil
	}

	size := len(o.slots)
	out := make([]pending, o.count)
	first := (o.next - o.count + size) % size
	for i := range out {
		out[i] = o.slots[(first+i)%size]
	}

	if o.dropped > 0 {
		log.Printf("mqtt: %d queued messages were dropped while offline", o.dropped)
	}
	o.next, o.count, o.dropped = 0, 0, 0
	return out
}

func (o *outbox) len() int {
	return o.count
}
