package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var errSendFailed = errors.New("send failed")

// recorder is a transport that keeps every message it is given.
type recorder struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (r *recorder) Send(_ context.Context, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errSendFailed
	}
	r.sent = append(r.sent, string(data))
	return nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

func (r *recorder) setFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

// count returns how many sent messages equal msg.
func (r *recorder) count(msg string) int {
	n := 0
	for _, m := range r.messages() {
		if m == msg {
			n++
		}
	}
	return n
}

// chatObjects publishes one object exercising methods, a notify property,
// plain signals and an enum.
const chatObjects = `{
	"chat": {
		"methods": [["sendMessage", 2], ["lookup", 3]],
		"properties": [
			[0, "topic", [1, 5], "general"],
			[1, "count", null, 0]
		],
		"signals": [["destroyed", 0], ["newMessage", 6]],
		"enums": {"Mode": {"Idle": 0, "Busy": 1}}
	}
}`

// readyChannel attaches a channel and completes its handshake with objects as
// the init payload. The recorder is reset afterwards.
func readyChannel(t *testing.T, objects string, opts ...Option) (*Channel, *recorder) {
	t.Helper()

	tr := &recorder{}
	c := New(tr, opts...)
	require.NoError(t, c.Attach(context.Background()))
	require.Equal(t, []string{`{"type":3,"id":0}`}, tr.messages())

	c.HandleMessage([]byte(fmt.Sprintf(`{"type":10,"id":0,"data":%s}`, objects)))
	require.Equal(t, StateReady, c.State())
	require.Equal(t, `{"type":4}`, tr.last())

	tr.reset()
	return c, tr
}

func mustObject(t *testing.T, c *Channel, id string) *Object {
	t.Helper()
	obj, ok := c.Object(id)
	require.True(t, ok, "object %s not registered", id)
	return obj
}
