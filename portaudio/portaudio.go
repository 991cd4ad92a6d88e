// Package portaudio provides an element which plays received signal using
// the default portaudio device.
package portaudio

import (
	"context"
	"sync"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"

	"github.com/pipelined/element/pin"
)

// Sink represents portaudio sink which allows to play audio using the
// default device. The stream is opened on the first received buffer, so
// sample rate and channel count follow the upstream signal.
type Sink struct {
	bufferSize int
	in         *pin.In[*audio.IntBuffer]

	// mu guards the stream state: flush is requested by the
	// terminating goroutine while the worker may be mid-write.
	mu          sync.Mutex
	buf         []float32
	stream      *portaudio.Stream
	numChannels int
	scale       float32
	flushed     bool
}

// NewSink returns new initialized sink which allows to play audio.
func NewSink(bufferSize int) *Sink {
	return &Sink{
		bufferSize: bufferSize,
		in:         pin.NewIn[*audio.IntBuffer]("portaudio in"),
	}
}

// Input returns the sink's input pin.
func (s *Sink) Input() *pin.In[*audio.IntBuffer] {
	return s.in
}

// Initialize initializes the portaudio api.
func (s *Sink) Initialize(context.Context) error {
	return portaudio.Initialize()
}

// DoWork drains the input pin and writes every received buffer to the
// portaudio stream.
func (s *Sink) DoWork(context.Context) error {
	for {
		buffer, ok := s.in.NextBuffer()
		if !ok {
			return nil
		}
		if err := s.play(buffer); err != nil {
			return err
		}
		s.in.Return(buffer)
	}
}

func (s *Sink) play(b *audio.IntBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return nil
	}
	if s.stream == nil {
		s.numChannels = b.Format.NumChannels
		s.scale = float32(int(1) << uint(b.SourceBitDepth-1))
		s.buf = make([]float32, s.bufferSize*s.numChannels)
		stream, err := portaudio.OpenDefaultStream(
			0,
			s.numChannels,
			float64(b.Format.SampleRate),
			s.bufferSize,
			&s.buf,
		)
		if err != nil {
			return err
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			return err
		}
		s.stream = stream
	}
	for i := range s.buf {
		if i < len(b.Data) {
			s.buf[i] = float32(b.Data[i]) / s.scale
		} else {
			// pad the last partial buffer with silence
			s.buf[i] = 0
		}
	}
	return s.stream.Write()
}

// Flush terminates portaudio structures.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return nil
	}
	s.flushed = true
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			return err
		}
		if err := s.stream.Close(); err != nil {
			return err
		}
		s.stream = nil
	}
	return portaudio.Terminate()
}
