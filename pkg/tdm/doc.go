// Package tdm decodes time-division multiplexed serial audio from three
// logic lines: bit clock, frame sync and serial data.
//
// The decoder pulls one sample per qualifying clock edge from a [Source],
// assembles data bits MSB first into fixed-width words, and pushes each
// completed word to a [Sink] together with the half-open range of sample
// indices it occupies. Channel numbering restarts at every rising edge of
// the frame line.
//
// Decoding is permissive. Nothing is emitted until the first frame start has
// been seen, and a capture without frame pulses simply produces no words.
// Misaligned frames shift channel numbering but never fail the run.
//
// Channels are numbered from 1: the first word after a frame start is
// reported as channel 1. Channel numbers are not bounded by any configured
// channel count.
//
// Typical usage:
//
//	d, err := tdm.NewDecoder(tdm.Config{BitsPerSample: 16, ClockEdge: tdm.EdgeRising})
//	if err != nil {
//	    return err
//	}
//	stats, err := d.Run(ctx, capture.Source(), tdm.SinkFunc(func(w tdm.Word) error {
//	    fmt.Println(w.Start, w.End, w)
//	    return nil
//	}))
package tdm
