package types

import "time"

// TimeLayout is the format of the created_time field in the input stream.
const TimeLayout = "2006-01-02T15:04:05Z"

// Transaction is one directed payment edge between two participants.
// Values are immutable once built by the ingest layer.
type Transaction struct {
	Actor     string    `json:"actor"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"created_time"`
}

// SelfLoop reports whether the actor paid themselves.
func (t Transaction) SelfLoop() bool {
	return t.Actor == t.Target
}

// Emission is the rolling median produced after one accepted transaction.
type Emission struct {
	// Seq numbers emissions from 1 in acceptance order.
	Seq uint64 `json:"seq"`

	Transaction Transaction `json:"transaction"`

	// Median is the median degree across in-window participants.
	Median float64 `json:"median"`

	// Watermark is the newest timestamp seen when the emission was produced.
	Watermark time.Time `json:"watermark"`

	WindowLen    int `json:"window_transactions"`
	Participants int `json:"participants"`
}
