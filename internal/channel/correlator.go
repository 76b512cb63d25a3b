package channel

import (
	"math"

	"github.com/luciancaetano/webchannel/internal/protocol"
)

// ResponseFunc receives the payload of a response.
type ResponseFunc func(result any)

// correlator matches responses to the calls that expect them. Slots are only
// released by a response; there is no timeout.
type correlator struct {
	next    int
	pending map[int]ResponseFunc
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[int]ResponseFunc)}
}

// assign stamps msg with the next free id and stores fn under it.
func (c *correlator) assign(msg *protocol.Message, fn ResponseFunc) (int, error) {
	if msg.ID != nil {
		return 0, ErrExplicitID
	}

	for {
		if c.next == math.MaxInt {
			c.next = 0
		}
		if _, busy := c.pending[c.next]; !busy {
			break
		}
		c.next++
	}

	id := c.next
	c.next++
	msg.ID = &id
	c.pending[id] = fn
	return id, nil
}

// take removes and returns the continuation for id.
func (c *correlator) take(id int) (ResponseFunc, bool) {
	fn, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return fn, ok
}

func (c *correlator) len() int {
	return len(c.pending)
}
