package pcm

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// Bytes encodes samples as little-endian 16-bit PCM.
func Bytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

// Samples decodes little-endian 16-bit PCM. A trailing odd byte is ignored.
func Samples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Reader reads int16 samples from a raw PCM byte stream.
type Reader struct {
	r   io.Reader
	buf []byte
	odd []byte
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadSamples reads up to len(p) samples into p. It returns io.EOF when the
// stream is exhausted.
func (r *Reader) ReadSamples(p []int16) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	need := len(p) * 2
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	buf := r.buf[:need]
	n := copy(buf, r.odd)
	r.odd = r.odd[:0]

	m, err := io.ReadAtLeast(r.r, buf[n:], min(2, need-n))
	n += m
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	if n%2 == 1 {
		r.odd = append(r.odd, buf[n-1])
		n--
	}
	for i := range n / 2 {
		p[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	if n > 0 && errors.Is(err, io.EOF) {
		return n / 2, nil
	}
	return n / 2, err
}

// Writer writes int16 samples to a raw PCM byte stream.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteSamples writes all samples.
func (w *Writer) WriteSamples(samples []int16) error {
	_, err := w.w.Write(Bytes(samples))
	return err
}

// ReadFile reads a raw PCM file.
func ReadFile(name string) ([]int16, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Samples(b), nil
}

// WriteFile writes samples as a raw PCM file.
func WriteFile(name string, samples []int16) error {
	return os.WriteFile(name, Bytes(samples), 0o644)
}
