package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/audiodenoise/pkg/noisereduce"
	"github.com/xaionaro-go/audiodenoise/pkg/noisesuppression/implementations/spectralsubtraction"
	"github.com/xaionaro-go/audiodenoise/pkg/progress"
	"github.com/xaionaro-go/observability"
)

const (
	exitCodeFailure = 1
	exitCodeUsage   = 2
)

type flags struct {
	Input             string
	Output            string
	RawFormat         audio.PCMFormat
	RawSampleRate     uint
	RawChannels       uint
	OutputBitDepth    int
	Stream            bool
	NetPprofAddr      string
	MetricsListenAddr string
	Config            spectralsubtraction.Config
}

func parseFlags() (flags, logger.Level) {
	loggerLevel := logger.LevelWarning
	f := flags{
		Config: spectralsubtraction.DefaultConfig(),
	}
	cfg := &f.Config

	pflag.Var(&loggerLevel, "log-level", "Log level")
	pflag.StringVarP(&f.Input, "input", "i", "", "the input audio file (WAV, Ogg Vorbis or raw PCM); '-' is stdin in the stream mode")
	pflag.StringVarP(&f.Output, "output", "o", "", "the output file; '-' is stdout in the stream mode")
	pflag.Var(&f.RawFormat, "raw-format", "treat the input as headerless PCM of this format (e.g. s16le, f32le)")
	pflag.UintVar(&f.RawSampleRate, "raw-sample-rate", 48000, "the sample rate of the raw PCM input")
	pflag.UintVar(&f.RawChannels, "raw-channels", 1, "the amount of interleaved channels of the raw PCM input")
	pflag.IntVar(&f.OutputBitDepth, "output-bit-depth", 0, "the bit depth of the WAV output (8, 16, 24, 32); 0 keeps the input one")
	pflag.BoolVar(&f.Stream, "stream", false, "denoise raw PCM chunk by chunk instead of loading the whole input")
	pflag.StringVar(&f.NetPprofAddr, "net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.StringVar(&f.MetricsListenAddr, "metrics-listen-addr", "", "an address to serve prometheus metrics on (at /metrics)")

	pflag.IntVar(&cfg.FFTSize, "n-fft", cfg.FFTSize, "the analysis window size")
	pflag.IntVar(&cfg.HopLength, "hop-length", cfg.HopLength, "the stride between frames; 0 is n-fft/4")
	pflag.DurationVar(&cfg.NoiseSampleDuration, "noise-sample-duration", cfg.NoiseSampleDuration, "the length of the leading noise-only segment")
	pflag.Float64Var(&cfg.Alpha, "alpha", cfg.Alpha, "the oversubtraction factor")
	pflag.Float64Var(&cfg.Beta, "beta", cfg.Beta, "the spectral floor")
	pflag.Var(&cfg.Normalization, "normalization", "the overlap-add normalization: window, squared-window")
	pflag.DurationVar(&cfg.ChunkDuration, "chunk-duration", cfg.ChunkDuration, "the length of the independently processed chunks; 0 disables chunking")
	pflag.IntVar(&cfg.Workers, "workers", cfg.Workers, "the amount of goroutines computing frames")
	pflag.Var(&cfg.FFTBackend, "fft-backend", "the FFT implementation: go-dsp, fourier")
	pflag.Var(&cfg.SeamRepair, "seam-repair", "the chunk seam repair: none, linear, spectral")
	pflag.IntVar(&cfg.SeamRepairSamples, "seam-repair-samples", cfg.SeamRepairSamples, "the amount of samples replaced around every chunk seam")
	pflag.Parse()

	switch {
	case f.Input == "" && f.Output == "" && pflag.NArg() == 2:
		f.Input, f.Output = pflag.Arg(0), pflag.Arg(1)
	case f.Input != "" && f.Output != "" && pflag.NArg() == 0:
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <input-file> <output-file>\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(exitCodeUsage)
	}
	return f, loggerLevel
}

func main() {
	f, loggerLevel := parseFlags()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	if f.NetPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(f.NetPprofAddr, nil)) })
	}
	if f.MetricsListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(f.MetricsListenAddr, mux)) })
	}

	var rawFormat *pcm.Format
	if f.RawFormat != audio.PCMFormatUndefined {
		rawFormat = &pcm.Format{
			Channels:   audio.Channel(f.RawChannels),
			SampleRate: audio.SampleRate(f.RawSampleRate),
			PCMFormat:  f.RawFormat,
		}
	}

	if f.Stream {
		if rawFormat == nil {
			fmt.Fprintln(os.Stderr, "the stream mode requires --raw-format")
			os.Exit(exitCodeUsage)
		}
		if err := runStream(ctx, f.Input, f.Output, *rawFormat, f.Config); err != nil {
			progress.NewWriter(os.Stdout, os.Stderr).Error(ctx, noisereduce.ErrorMessage(err))
			belt.Flush(ctx)
			os.Exit(exitCodeFailure)
		}
		return
	}

	err := noisereduce.Run(ctx, f.Input, f.Output, f.Config, noisereduce.Options{
		OutputBitDepth: f.OutputBitDepth,
		RawFormat:      rawFormat,
	})
	if err != nil {
		// noisereduce.Run has already written the ERROR line.
		belt.Flush(ctx)
		os.Exit(exitCodeFailure)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	if err := noisereduce.CheckInput(path); err != nil {
		return nil, err
	}
	return os.Open(path)
}

func createOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{Writer: os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
