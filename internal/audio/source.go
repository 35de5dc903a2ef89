package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// ErrSourceEnd is returned by Source.Read when the underlying stream has
// reached a natural end (file EOF, network end-of-stream marker).
var ErrSourceEnd = errors.New("audio source: end of stream")

// Source is the capability set an audio producer exposes to the decoder,
// grounded on the original engine's adin_tcpip.c / adin_portaudio.c shape:
// standby once at startup, begin/end bracket a single utterance capture,
// pause/resume are used by network clients and the module-mode protocol to
// suspend capture without tearing the connection down.
type Source interface {
	// Standby prepares the source for a given sample rate. opaque carries
	// source-specific identification (a file path, a listener address) for
	// logging only.
	Standby(sampleRate int, opaque string) error
	Begin() error
	// Read fills buf with up to len(buf) samples and returns the count
	// actually read. It returns ErrSourceEnd when no more samples will ever
	// arrive for this source.
	Read(buf []int16) (int, error)
	End() error
	Resume() error
	Pause() error
	Close() error
}

// FileSource reads PCM16 samples from a WAV or raw PCM file in one shot.
type FileSource struct {
	path    string
	raw     bool
	samples []int16
	pos     int
	paused  bool
}

func NewFileSource(path string, raw bool) *FileSource {
	return &FileSource{path: path, raw: raw}
}

func (f *FileSource) Standby(sampleRate int, opaque string) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("audio file source: %w", err)
	}

	if f.raw {
		if len(data)%2 != 0 {
			data = data[:len(data)-1]
		}
		f.samples = make([]int16, len(data)/2)
		for i := range f.samples {
			f.samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		return nil
	}

	floats, err := DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("audio file source: %w", err)
	}
	f.samples = make([]int16, len(floats))
	for i, v := range floats {
		f.samples[i] = float32ToPCM16(v)
	}
	return nil
}

func (f *FileSource) Begin() error { f.pos = 0; return nil }

func (f *FileSource) Read(buf []int16) (int, error) {
	if f.paused {
		return 0, nil
	}
	if f.pos >= len(f.samples) {
		return 0, ErrSourceEnd
	}
	n := copy(buf, f.samples[f.pos:])
	f.pos += n
	return n, nil
}

func (f *FileSource) End() error    { return nil }
func (f *FileSource) Resume() error { f.paused = false; return nil }
func (f *FileSource) Pause() error  { f.paused = true; return nil }
func (f *FileSource) Close() error  { return nil }

// StdinSource streams raw little-endian PCM16 from an io.Reader (typically
// os.Stdin), for piping `sox`/`arecord`-style captures into the decoder.
type StdinSource struct {
	r      *bufio.Reader
	paused bool
}

func NewStdinSource(r io.Reader) *StdinSource {
	return &StdinSource{r: bufio.NewReaderSize(r, 1<<16)}
}

func (s *StdinSource) Standby(sampleRate int, opaque string) error { return nil }
func (s *StdinSource) Begin() error                                { return nil }
func (s *StdinSource) End() error                                  { return nil }
func (s *StdinSource) Resume() error                               { s.paused = false; return nil }
func (s *StdinSource) Pause() error                                { s.paused = true; return nil }
func (s *StdinSource) Close() error                                { return nil }

func (s *StdinSource) Read(buf []int16) (int, error) {
	if s.paused {
		return 0, nil
	}
	raw := make([]byte, len(buf)*2)
	n, err := io.ReadFull(s.r, raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if samples > 0 {
				return samples, nil
			}
			return 0, ErrSourceEnd
		}
		return samples, err
	}
	return samples, nil
}

// NetSource implements the network audio protocol of spec §6: repeated
// {4-byte big-endian length, N bytes of 16-bit big-endian PCM} records over
// a TCP connection. A zero-length record marks end-of-segment; a negative
// length marks end-of-stream.
type NetSource struct {
	conn    net.Conn
	pending GrowBuffer
	paused  bool
	ended   bool
}

func NewNetSource(conn net.Conn) *NetSource {
	return &NetSource{conn: conn}
}

func (n *NetSource) Standby(sampleRate int, opaque string) error { return nil }
func (n *NetSource) Begin() error                                { return nil }
func (n *NetSource) End() error                                  { return nil }
func (n *NetSource) Resume() error                               { n.paused = false; return nil }
func (n *NetSource) Pause() error                                { n.paused = true; return nil }
func (n *NetSource) Close() error                                { return n.conn.Close() }

func (n *NetSource) Read(buf []int16) (int, error) {
	if n.paused {
		return 0, nil
	}
	if n.ended {
		return 0, ErrSourceEnd
	}

	for n.pending.Len() < len(buf) {
		var lenHdr [4]byte
		if _, err := io.ReadFull(n.conn, lenHdr[:]); err != nil {
			return 0, fmt.Errorf("audio net source: reading length: %w", err)
		}
		length := int32(binary.BigEndian.Uint32(lenHdr[:]))
		switch {
		case length < 0:
			n.ended = true
			if n.pending.Len() == 0 {
				return 0, ErrSourceEnd
			}
			return n.drain(buf), nil
		case length == 0:
			// End-of-segment marker: flush what we have without ending the
			// stream, so the caller can finalise the current utterance.
			if n.pending.Len() == 0 {
				return 0, nil
			}
			return n.drain(buf), nil
		}

		raw := make([]byte, length)
		if _, err := io.ReadFull(n.conn, raw); err != nil {
			return 0, fmt.Errorf("audio net source: reading payload: %w", err)
		}
		for i := 0; i+1 < len(raw); i += 2 {
			n.pending.Append(int16(binary.BigEndian.Uint16(raw[i:])))
		}
	}

	return n.drain(buf), nil
}

func (n *NetSource) drain(buf []int16) int {
	count := copy(buf, n.pending.Samples())
	n.pending.DropFront(count)
	return count
}

func float32ToPCM16(v float32) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
