// Package mp3 provides an element which encodes received signal to mp3
// files.
package mp3

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/viert/lame"

	"github.com/pipelined/element"
	"github.com/pipelined/element/pin"
)

// Sink receives buffers through its input pin and encodes them to an mp3
// file. The encoder is created on the first buffer, so sample rate and
// channel count follow the upstream signal. Sink is single use: it cannot
// be initialized twice.
type Sink struct {
	path    string
	bitRate int
	quality int
	in      *pin.In[*audio.IntBuffer]

	mu   sync.Mutex
	f    *os.File
	wr   *lame.LameWriter
	once sync.Once
}

// NewSink creates new mp3 sink.
func NewSink(path string, bitRate int, quality int) *Sink {
	return &Sink{
		path:    path,
		bitRate: bitRate,
		quality: quality,
		in:      pin.NewIn[*audio.IntBuffer]("mp3 in"),
	}
}

// Input returns the sink's input pin.
func (s *Sink) Input() *pin.In[*audio.IntBuffer] {
	return s.in
}

// Initialize creates the destination file.
func (s *Sink) Initialize(context.Context) error {
	if err := element.SingleUse(&s.once); err != nil {
		return err
	}
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.f = f
	s.mu.Unlock()
	return nil
}

// DoWork drains the input pin, encoding every received buffer.
func (s *Sink) DoWork(context.Context) error {
	for {
		buffer, ok := s.in.NextBuffer()
		if !ok {
			return nil
		}
		if err := s.encode(buffer); err != nil {
			return err
		}
		s.in.Return(buffer)
	}
}

func (s *Sink) encode(b *audio.IntBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	if s.wr == nil {
		s.wr = lame.NewWriter(s.f)
		s.wr.Encoder.SetBitrate(s.bitRate)
		s.wr.Encoder.SetQuality(s.quality)
		s.wr.Encoder.SetNumChannels(b.Format.NumChannels)
		s.wr.Encoder.SetInSamplerate(b.Format.SampleRate)
		s.wr.Encoder.SetMode(lame.JOINT_STEREO)
		s.wr.Encoder.SetVBR(lame.VBR_RH)
		s.wr.Encoder.InitParams()
	}

	buf := new(bytes.Buffer)
	shift := 0
	// lame consumes 16-bit samples
	if b.SourceBitDepth > 16 {
		shift = b.SourceBitDepth - 16
	}
	for i := range b.Data {
		if err := binary.Write(buf, binary.LittleEndian, int16(b.Data[i]>>shift)); err != nil {
			return err
		}
	}
	_, err := s.wr.Write(buf.Bytes())
	return err
}

// Flush cleans up buffers.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	if s.wr != nil {
		if err := s.wr.Close(); err != nil {
			return err
		}
		s.wr = nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
