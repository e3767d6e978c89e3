package encoding

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
)

// Large reports are rare; buffers beyond this are dropped instead of pooled.
const maxPooledBuffer = 64 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// Marshal encodes v compactly without HTML escaping, so recommendation text
// survives unchanged in exported files.
func Marshal(v interface{}) ([]byte, error) {
	return marshal(v, "")
}

// MarshalIndent is Marshal with two-space indentation
func MarshalIndent(v interface{}) ([]byte, error) {
	return marshal(v, "  ")
}

func marshal(v interface{}, indent string) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := encodeTo(buf, v, indent); err != nil {
		return nil, err
	}

	data := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Encode writes v followed by a newline
func Encode(w io.Writer, v interface{}, pretty bool) error {
	indent := ""
	if pretty {
		indent = "  "
	}

	buf := getBuffer()
	defer putBuffer(buf)

	if err := encodeTo(buf, v, indent); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func encodeTo(buf *bytes.Buffer, v interface{}, indent string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(v)
}
