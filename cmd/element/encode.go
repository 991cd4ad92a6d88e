package main

import (
	"errors"
	"flag"

	"github.com/pipelined/element"
	"github.com/pipelined/element/log"
	"github.com/pipelined/element/mp3"
	"github.com/pipelined/element/wav"
)

type encodeCommand struct {
	in         string
	out        string
	bufferSize int
	bitRate    int
	quality    int
}

// Implement command interface
func (cmd *encodeCommand) Name() string {
	return "encode"
}

func (cmd *encodeCommand) Help() string {
	return "Encode a wav file to mp3"
}

func (cmd *encodeCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.in, "in", "", "path to the wav file")
	fs.StringVar(&cmd.out, "out", "out.mp3", "path to the mp3 file")
	fs.IntVar(&cmd.bufferSize, "buffersize", 512, "number of frames per buffer")
	fs.IntVar(&cmd.bitRate, "bitrate", 192, "mp3 bit rate")
	fs.IntVar(&cmd.quality, "quality", 1, "mp3 quality")
}

func (cmd *encodeCommand) Run() error {
	if cmd.in == "" {
		return errors.New("input file is not defined")
	}

	logger := log.GetLogger()
	source := wav.NewSource(cmd.in, cmd.bufferSize)
	sink := mp3.NewSink(cmd.out, cmd.bitRate, cmd.quality)

	sourceElement, err := element.New(source,
		element.WithName("wav source"),
		element.WithLogger(logger),
		element.WithOutputs(source.Output()),
	)
	if err != nil {
		return err
	}
	sinkElement, err := element.New(sink,
		element.WithName("mp3 sink"),
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
