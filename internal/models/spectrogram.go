package models

// SpectrogramData carries the mel dB grids behind the comparison image.
// Values are row-major [band][frame], low bands first.
type SpectrogramData struct {
	SampleRate int         `json:"sampleRate" msgpack:"sampleRate"`
	HopLength  int         `json:"hopLength" msgpack:"hopLength"`
	MelBands   int         `json:"melBands" msgpack:"melBands"`
	TopDB      float64     `json:"topDb" msgpack:"topDb"`
	Original   [][]float32 `json:"original" msgpack:"original"`
	Cleaned    [][]float32 `json:"cleaned" msgpack:"cleaned"`
}
