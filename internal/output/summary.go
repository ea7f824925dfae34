package output

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// ChannelStats summarises the values decoded on one channel.
type ChannelStats struct {
	Channel int     `json:"channel"`
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
}

// Summarize groups words by channel and returns per-channel statistics
// ordered by channel. StdDev is the sample standard deviation and is zero
// for channels with a single word.
func Summarize(words []tdm.Word) []ChannelStats {
	byChannel := make(map[int][]float64)
	for _, w := range words {
		byChannel[w.Channel] = append(byChannel[w.Channel], float64(w.Value))
	}

	out := make([]ChannelStats, 0, len(byChannel))
	for _, ch := range slices.Sorted(maps.Keys(byChannel)) {
		vals := byChannel[ch]
		mean, std := stat.MeanStdDev(vals, nil)
		if len(vals) < 2 {
			std = 0
		}
		out = append(out, ChannelStats{
			Channel: ch,
			Count:   len(vals),
			Min:     floats.Min(vals),
			Max:     floats.Max(vals),
			Mean:    mean,
			StdDev:  std,
		})
	}
	return out
}

// WriteSummary renders stats as an aligned table.
func WriteSummary(w io.Writer, stats []ChannelStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "channel\tcount\tmin\tmax\tmean\tstddev\t")
	for _, s := range stats {
		fmt.Fprintf(tw, "%d\t%d\t%.0f\t%.0f\t%.2f\t%.2f\t\n",
			s.Channel, s.Count, s.Min, s.Max, s.Mean, s.StdDev)
	}
	return tw.Flush()
}
