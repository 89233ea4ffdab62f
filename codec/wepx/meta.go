package wepx

// StreamMeta is the stream-global metadata carried by a stream's first
// (I-)frame and frozen for the lifetime of the stream: the scale, width,
// height and alpha flag chosen here apply unchanged to every subsequent
// frame, I or P.
type StreamMeta struct {
	Min    float64     `json:"min"`
	Max    float64     `json:"max"`
	Width  uint32      `json:"width"`
	Height uint32      `json:"height"`
	Scale  float64     `json:"scale"`
	Alpha  bool        `json:"alpha"`
	Extent *[4]float64 `json:"extent,omitempty"`
}
