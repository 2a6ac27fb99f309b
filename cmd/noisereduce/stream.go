package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/audiodenoise/pkg/metrics"
	"github.com/xaionaro-go/audiodenoise/pkg/noisereduce"
	"github.com/xaionaro-go/audiodenoise/pkg/noisesuppression/implementations/spectralsubtraction"
	"github.com/xaionaro-go/audiodenoise/pkg/noisesuppressionstream"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
)

const streamBufferChunks = 4

// runStream denoises raw PCM from inputPath chunk by chunk into outputPath
// in the same PCM format, reduced to mono.
func runStream(
	ctx context.Context,
	inputPath string,
	outputPath string,
	format pcm.Format,
	cfg spectralsubtraction.Config,
) (_err error) {
	logger.Tracef(ctx, "runStream: '%s' -> '%s'", inputPath, outputPath)
	defer func() { logger.Tracef(ctx, "/runStream: '%s' -> '%s': %v", inputPath, outputPath, _err) }()

	metrics.RunsTotal.Inc()
	defer func() {
		if _err != nil {
			metrics.RunErrors.WithLabelValues(noisereduce.ErrorKind(_err)).Inc()
		}
	}()

	input, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := createOutput(outputPath)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", outputPath, err)
	}
	defer output.Close()

	suppressor, err := spectralsubtraction.NewSuppressor(cfg, format.SampleRate)
	if err != nil {
		return err
	}
	defer suppressor.Close()

	inputCounter := datacounter.NewReaderCounter(input)
	mono, err := pcm.NewDownmixReader(format, inputCounter, spectralsubtraction.SuppressorPCMFormat)
	if err != nil {
		return fmt.Errorf("unable to initialize the downmixer: %w", err)
	}

	bufferSize := suppressor.ChunkSize() * streamBufferChunks
	stream, err := noisesuppressionstream.NewNoiseSuppressionStream(ctx, mono, suppressor, bufferSize, bufferSize)
	if err != nil {
		return fmt.Errorf("unable to initialize the noise suppression stream: %w", err)
	}

	denoised, err := pcm.NewDownmixReader(pcm.Format{
		Channels:   1,
		SampleRate: format.SampleRate,
		PCMFormat:  spectralsubtraction.SuppressorPCMFormat,
	}, stream, format.PCMFormat)
	if err != nil {
		return fmt.Errorf("unable to initialize the output converter: %w", err)
	}

	outputCounter := datacounter.NewWriterCounter(output)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	observability.Go(ctx, func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "read: %d, written: %d", inputCounter.Count(), outputCounter.Count())
			}
		}
	})

	startedAt := time.Now()
	if _, err := io.Copy(outputCounter, denoised); err != nil {
		return fmt.Errorf("unable to denoise the stream: %w", err)
	}
	metrics.StageDuration.WithLabelValues("stream").Observe(time.Since(startedAt).Seconds())
	logger.Infof(ctx, "denoised %d bytes of %s into %d bytes of mono %s", inputCounter.Count(), format.PCMFormat, outputCounter.Count(), format.PCMFormat)
	return nil
}
