package tdm

import "strconv"

// LogicChannel describes one input line the decoder needs.
type LogicChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// OptionInfo describes one user-settable decoder option.
type OptionInfo struct {
	ID      string   `json:"id"`
	Desc    string   `json:"desc"`
	Default string   `json:"default"`
	Values  []string `json:"values,omitempty"`
}

// AnnotationClass names a category of decoder output.
type AnnotationClass struct {
	ID   string `json:"id"`
	Desc string `json:"desc"`
}

// DecoderInfo is the self-description a host tool uses to list the decoder,
// wire its inputs and offer its options.
type DecoderInfo struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	LongName    string            `json:"longname"`
	Desc        string            `json:"desc"`
	License     string            `json:"license"`
	Inputs      []string          `json:"inputs"`
	Outputs     []string          `json:"outputs"`
	Channels    []LogicChannel    `json:"channels"`
	Options     []OptionInfo      `json:"options"`
	Annotations []AnnotationClass `json:"annotations"`
}

// namedChannelClasses is the number of per-channel annotation classes. Words
// on higher channels fall into the generic "data" class.
const namedChannelClasses = 8

// Metadata describes this decoder.
var Metadata = DecoderInfo{
	ID:       "tdm",
	Name:     "TDM",
	LongName: "TDM Audio",
	Desc:     "TDM multi-channel audio",
	License:  "gplv2+",
	Inputs:   []string{"logic"},
	Outputs:  []string{"tdm"},
	Channels: []LogicChannel{
		{ID: "clock", Name: "bitclk", Desc: "Data bit clock"},
		{ID: "frame", Name: "framesync", Desc: "Frame sync"},
		{ID: "data", Name: "data", Desc: "Serial data"},
	},
	Options: []OptionInfo{
		{ID: "bps", Desc: "Bits per sample", Default: strconv.Itoa(DefaultBitsPerSample)},
		{ID: "edge", Desc: "Clock edge to sample on", Default: "r", Values: []string{"r", "f"}},
	},
	Annotations: annotationClasses(),
}

func annotationClasses() []AnnotationClass {
	classes := make([]AnnotationClass, 0, namedChannelClasses+2)
	for i := range namedChannelClasses {
		n := strconv.Itoa(i)
		classes = append(classes, AnnotationClass{ID: "ch" + n, Desc: "Data channel " + n})
	}
	return append(classes,
		AnnotationClass{ID: "data", Desc: "Data"},
		AnnotationClass{ID: "warning", Desc: "Warning"},
	)
}

// AnnotationClass returns the class a word on the given channel is reported
// under: "chN" for the first eight channels and "data" for the rest.
func (DecoderInfo) AnnotationClass(channel int) string {
	if channel >= 0 && channel < namedChannelClasses {
		return "ch" + strconv.Itoa(channel)
	}
	return "data"
}
