package protocol

import "bytes"

// DefaultDelimiter separates messages on byte-stream transports.
const DefaultDelimiter byte = '\n'

// Framer splits a byte stream into messages on a single delimiter byte.
// It is not safe for concurrent use.
type Framer struct {
	delim byte
	buf   []byte
}

// NewFramer returns a Framer splitting on delim.
func NewFramer(delim byte) *Framer {
	return &Framer{delim: delim}
}

// Feed appends data to the buffer and returns every complete segment, in
// order, including empty ones. The trailing partial segment stays buffered.
// Returned slices are copies and remain valid after later calls.
func (f *Framer) Feed(data []byte) [][]byte {
	f.buf = append(f.buf, data...)

	var out [][]byte
	for {
		i := bytes.IndexByte(f.buf, f.delim)
		if i < 0 {
			break
		}
		segment := make([]byte, i)
		copy(segment, f.buf[:i])
		out = append(out, segment)
		f.buf = f.buf[i+1:]
	}

	if len(f.buf) == 0 {
		f.buf = nil
	}
	return out
}

// Buffered returns the number of bytes held for an incomplete message.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Frame returns msg followed by delim.
func Frame(msg []byte, delim byte) []byte {
	out := make([]byte, len(msg)+1)
	copy(out, msg)
	out[len(msg)] = delim
	return out
}
