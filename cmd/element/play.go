package main

import (
	"errors"
	"flag"

	"github.com/pipelined/element"
	"github.com/pipelined/element/log"
	"github.com/pipelined/element/portaudio"
	"github.com/pipelined/element/wav"
)

type playCommand struct {
	in         string
	bufferSize int
}

// Implement command interface
func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play a wav file on the default audio device"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.in, "in", "", "path to the wav file")
	fs.IntVar(&cmd.bufferSize, "buffersize", 512, "number of frames per buffer")
}

func (cmd *playCommand) Run() error {
	if cmd.in == "" {
		return errors.New("input file is not defined")
	}

	logger := log.GetLogger()
	source := wav.NewSource(cmd.in, cmd.bufferSize)
	sink := portaudio.NewSink(cmd.bufferSize)

	sourceElement, err := element.New(source,
		element.WithName("wav source"),
		element.WithLogger(logger),
		element.WithOutputs(source.Output()),
	)
	if err != nil {
		return err
	}
	sinkElement, err := element.New(sink,
		element.WithName("portaudio sink"),
		element.WithLogger(logger),
		element.WithInputs(sink.Input()),
	)
	if err != nil {
		return err
	}
	if err := source.Output().Connect(sink.Input()); err != nil {
		return err
	}

	pipeline := element.NewPipeline(sourceElement, sinkElement)
	if err := pipeline.Execute(); err != nil {
		return err
	}
	pipeline.Play()
	<-source.Done()
	return pipeline.Terminate()
}
