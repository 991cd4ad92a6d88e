// Package wav provides elements which read and write signal to wav files.
package wav

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/element/pin"
)

// ErrInvalidWav is returned when the source file is not a valid wav.
var ErrInvalidWav = errors.New("wav is not valid")

type (
	// Source reads buffers from a wav file and pushes them through its
	// output pin. It pauses the owning element when the file is read to
	// the end.
	Source struct {
		path       string
		bufferSize int
		out        *pin.Out[*audio.IntBuffer]

		// mu guards file, decoder and ib: flush is requested by the
		// terminating goroutine while the worker may be mid-read.
		mu      sync.Mutex
		file    *os.File
		decoder *wav.Decoder
		ib      *audio.IntBuffer

		once sync.Once
		done chan struct{}
	}

	// Sink receives buffers through its input pin and encodes them to a
	// wav file. The encoder is created on the first buffer, so sample
	// rate and channel count follow the upstream signal.
	Sink struct {
		path string
		in   *pin.In[*audio.IntBuffer]

		mu      sync.Mutex
		file    *os.File
		encoder *wav.Encoder
		frames  int
	}
)

// NewSource creates a new wav source for the provided file path.
func NewSource(path string, bufferSize int) *Source {
	return &Source{
		path:       path,
		bufferSize: bufferSize,
		out:        pin.NewOut[*audio.IntBuffer]("wav out"),
		done:       make(chan struct{}),
	}
}

// Output returns the source's output pin.
func (s *Source) Output() *pin.Out[*audio.IntBuffer] {
	return s.out
}

// Done returns the channel closed when the file was read to the end.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Initialize opens the file and validates the decoder.
func (s *Source) Initialize(context.Context) error {
	file, err := os.Open(s.path)
	if err != nil {
		return err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return ErrInvalidWav
	}
	s.mu.Lock()
	s.file = file
	s.decoder = decoder
	s.ib = &audio.IntBuffer{
		Format:         decoder.Format(),
		Data:           make([]int, s.bufferSize*decoder.Format().NumChannels),
		SourceBitDepth: int(decoder.BitDepth),
	}
	s.mu.Unlock()
	return nil
}

// DoWork reads one buffer from the file and pushes it downstream.
func (s *Source) DoWork(ctx context.Context) error {
	s.mu.Lock()
	if s.file == nil {
		s.mu.Unlock()
		return io.EOF
	}
	// restore the read slice, PCMBuffer reads len(Data) samples
	s.ib.Data = s.ib.Data[:cap(s.ib.Data)]
	read, err := s.decoder.PCMBuffer(s.ib)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if read == 0 {
		s.mu.Unlock()
		s.once.Do(func() {
			close(s.done)
		})
		return io.EOF
	}

	buffer, ok := s.out.AcceptProcessedBuffer()
	if !ok {
		buffer = &audio.IntBuffer{}
	}
	buffer.Format = s.ib.Format
	buffer.SourceBitDepth = s.ib.SourceBitDepth
	buffer.Data = append(buffer.Data[:0], s.ib.Data[:read]...)
	s.mu.Unlock()
	return s.out.Push(ctx, buffer)
}

// Flush closes the file.
func (s *Source) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// NewSink creates a new wav sink writing to the provided file path.
func NewSink(path string) *Sink {
	return &Sink{
		path: path,
		in:   pin.NewIn[*audio.IntBuffer]("wav in"),
	}
}

// Input returns the sink's input pin.
func (s *Sink) Input() *pin.In[*audio.IntBuffer] {
	return s.in
}

// Frames returns the number of frames written so far.
func (s *Sink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Initialize creates the destination file.
func (s *Sink) Initialize(context.Context) error {
	file, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.file = file
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

func (s *Sink) encode(buffer *audio.IntBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	if s.encoder == nil {
		s.encoder = wav.NewEncoder(
			s.file,
			buffer.Format.SampleRate,
			buffer.SourceBitDepth,
			buffer.Format.NumChannels,
			1,
		)
	}
	if err := s.encoder.Write(buffer); err != nil {
		return err
	}
	s.frames += buffer.NumFrames()
	return nil
}

// Flush closes the encoder and the file.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	if s.encoder != nil {
		if err := s.encoder.Close(); err != nil {
			return err
		}
		s.encoder = nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
