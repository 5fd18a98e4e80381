// Package vad implements energy based voice activity detection over live
// media streams.
//
// # Overview
//
// A [Meter] follows a reactive stream handle. For every stream that carries
// audio it opens an [AnalysisContext], builds a frequency analyser over the
// stream and samples it every Options.Interval:
//
//	meter := vad.NewMeter(localStream, vad.Options{SpeakingThreshold: 10})
//	defer meter.Close()
//
//	meter.Speaking().Subscribe(func(speaking bool) {
//	    fmt.Println("speaking:", speaking)
//	})
//
// Each sample takes the analyser's byte-scale frequency magnitudes (0..255,
// mapped from -100..-30 dBFS), computes their root-mean-square and reports
// speaking while the RMS exceeds the threshold.
//
// # Resource Lifecycle
//
// An analysis context is an exclusive audio resource. The meter closes it on
// every stream change and on Close, before anything new is built, and resets
// the speaking state to false. A closed context also stops the sampling loop,
// which checks the context before scheduling each sample.
//
// [PCMContext] is the built-in context. It taps the decoded PCM of
// media.SampleSource tracks and runs a Hann-windowed radix-2 FFT.
package vad
