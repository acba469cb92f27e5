package wsanalyzer

// message is the wire envelope, copied verbatim from the teacher: a
// flat event_type/property/value triple. Every outbound call and
// inbound notification this adapter handles is carried as one of
// these, with structured payloads JSON-encoded into Value — the
// teacher's protocol only ever carries scalar strings there, but the
// envelope shape itself is unchanged.
type message struct {
	EventType string `json:"event_type"`
	Property  string `json:"property"`
	Value     string `json:"value,omitempty"`
}

// Outbound event types this adapter sends.
const (
	eventOpen                 = "open"
	eventOpenEx               = "open_ex"
	eventCloseInspector       = "close_inspector"
	eventSetInspectorID       = "set_inspector_id"
	eventSetInspectorBandwidth = "set_inspector_bandwidth"
	eventSetInspectorFreq     = "set_inspector_freq"
	eventSetInspectorConfig   = "set_inspector_config"
	eventSetFrequency         = "set_frequency"
	eventGetSourceInfo        = "get_source_info"
)

// Inbound event types this adapter recognizes.
const (
	eventOpenResponse      = "open_response"
	eventWrongHandle       = "wrong_handle"
	eventInvalidChannel    = "invalid_channel"
	eventSamples           = "samples"
	eventSourceInfoReply   = "source_info_response"
)

type openPayload struct {
	Class string  `json:"class"`
	Fc    float64 `json:"fc"`
	FLow  float64 `json:"f_low"`
	FHigh float64 `json:"f_high"`
	Bw    float64 `json:"bw"`
}

type openExPayload struct {
	Class   string  `json:"class"`
	Fc      float64 `json:"fc"`
	FLow    float64 `json:"f_low"`
	FHigh   float64 `json:"f_high"`
	Bw      float64 `json:"bw"`
	Ft      float64 `json:"ft"`
	Precise bool    `json:"precise"`
	Parent  int64   `json:"parent"`
}

type openResponsePayload struct {
	ReqID           int64          `json:"req_id"`
	Handle          int64          `json:"handle"`
	Config          map[string]any `json:"config"`
	EquivSampleRate float64        `json:"equiv_sample_rate"`
}

type reqIDPayload struct {
	ReqID int64 `json:"req_id"`
}

type samplesPayload struct {
	InspectorID int64     `json:"inspector_id"`
	Real        []float32 `json:"real"`
	Imag        []float32 `json:"imag"`
}

type setInspectorIDPayload struct {
	ID int64 `json:"id"`
}

type sourceInfoPayload struct {
	Frequency    float64 `json:"frequency"`
	SampleRate   float64 `json:"sample_rate"`
	LNBFrequency float64 `json:"lnb_frequency"`
}
