package engine

// Response shapes shared by the analytics endpoints.

type SimpleStat struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

type GraphPoints struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type GraphData struct {
	Metric string      `json:"metric"`
	Data   GraphPoints `json:"data"`
}

type TableData struct {
	Metric string `json:"metric"`
	Data   any    `json:"data"`
}
