package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNoRecord means nothing complete is buffered and the read returned
	// no new bytes.
	ErrNoRecord = errors.New("no complete record buffered")

	// ErrIncomplete means a partial record is buffered but its terminator
	// has not arrived yet.
	ErrIncomplete = errors.New("incomplete record")
)

// Framer splits a byte stream into ETX-delimited records. It owns the
// per-connection tail buffer holding bytes of a not-yet-terminated record.
// Deadline control stays with the owner of the underlying connection.
type Framer struct {
	r    io.Reader
	tail []byte
}

// NewFramer creates a Framer reading from r.
func NewFramer(r io.Reader) *Framer {
	return &Framer{r: r}
}

// Next returns the next complete record. When nothing complete is buffered
// it performs one bounded read of at most BufferSize bytes and retries once.
// Returns ErrNoRecord or ErrIncomplete when no record is available, io.EOF
// when the peer closed the stream, or the read error as-is (a deadline error
// on a non-blocking poll).
func (f *Framer) Next() (string, error) {
	if msg, ok := f.pop(); ok {
		return msg, nil
	}

	buf := make([]byte, BufferSize)
	n, err := f.r.Read(buf)
	if n > 0 {
		f.tail = append(f.tail, buf[:n]...)
	}
	if msg, ok := f.pop(); ok {
		return msg, nil
	}
	if err != nil {
		return "", err
	}
	if len(f.tail) > 0 {
		return "", ErrIncomplete
	}
	return "", ErrNoRecord
}

// Buffered reports how many bytes of a partial record are held back.
func (f *Framer) Buffered() int {
	return len(f.tail)
}

// pop removes the next terminated record from the tail buffer. Empty
// records (two adjacent terminators) are discarded.
func (f *Framer) pop() (string, bool) {
	for {
		i := bytes.IndexByte(f.tail, ETX)
		if i < 0 {
			return "", false
		}
		msg := string(f.tail[:i])
		f.tail = append(f.tail[:0], f.tail[i+1:]...)
		if msg != "" {
			return msg, true
		}
	}
}

// WriteRecord writes msg followed by the ETX terminator in a single write.
func WriteRecord(w io.Writer, msg string) error {
	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, msg...)
	buf = append(buf, ETX)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}
