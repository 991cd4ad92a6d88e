package wav_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/element"
	"github.com/pipelined/element/wav"
)

const (
	bufferSize  = 512
	sampleRate  = 44100
	numChannels = 2
	numFrames   = 3 * bufferSize
)

// createWav writes a test file with a sine wave and returns its path.
func createWav(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	e := gowav.NewEncoder(f, sampleRate, 16, numChannels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: 16,
		Data:           make([]int, numFrames*numChannels),
	}
	for i := 0; i < numFrames; i++ {
		sample := int(math.Sin(2*math.Pi*440*float64(i)/sampleRate) * 0x7000)
		for j := 0; j < numChannels; j++ {
			buf.Data[i*numChannels+j] = sample
		}
	}
	require.NoError(t, e.Write(buf))
	require.NoError(t, e.Close())
	require.NoError(t, f.Close())
	return path
}

func TestCopyPipeline(t *testing.T) {
	defer goleak.VerifyNoLeaks(t)

	in := createWav(t)
	out := filepath.Join(t.TempDir(), "out.wav")

	source := wav.NewSource(in, bufferSize)
	sink := wav.NewSink(out)

	sourceElement, err := element.New(source,
		element.WithName("wav source"),
		element.WithOutputs(source.Output()),
	)
	require.NoError(t, err)
	sinkElement, err := element.New(sink,
		element.WithName("wav sink"),
		element.WithInputs(sink.Input()),
	)
	require.NoError(t, err)
	require.NoError(t, source.Output().Connect(sink.Input()))

	p := element.NewPipeline(sourceElement, sinkElement)
	require.NoError(t, p.Execute())
	p.Play()

	<-source.Done()
	// wait for the sink to drain the in-flight buffers
	deadline := time.Now().Add(5 * time.Second)
	for sink.Frames() < numFrames && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, p.Terminate())
	assert.Equal(t, numFrames, sink.Frames())

	// the copy must decode to the same amount of frames
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	decoder := gowav.NewDecoder(f)
	require.True(t, decoder.IsValidFile())
	decoded, err := decoder.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, numFrames, decoded.NumFrames())
	assert.Equal(t, numChannels, decoded.Format.NumChannels)
}

func TestSourceInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav"), 0644))

	source := wav.NewSource(path, bufferSize)
	e, err := element.New(source, element.WithOutputs(source.Output()))
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Failed)
	assert.True(t, errors.Is(e.Err(), wav.ErrInvalidWav))
}

func TestSourceMissingFile(t *testing.T) {
	source := wav.NewSource(filepath.Join(t.TempDir(), "missing.wav"), bufferSize)
	e, err := element.New(source, element.WithOutputs(source.Output()))
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Failed)
	require.Error(t, e.Err())
}
