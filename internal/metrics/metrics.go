// Package metrics exposes processor counters in the Prometheus text format.
//
// Families are built directly as client_model protobufs and encoded with
// expfmt, so the exposition always reflects one consistent Stats read.
package metrics

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/txgraph/rollingmedian/internal/stream"
)

// Metric names exposed on /metrics.
const (
	NameAccepted     = "rolling_median_transactions_accepted_total"
	NameStale        = "rolling_median_transactions_stale_total"
	NameMalformed    = "rolling_median_lines_malformed_total"
	NameLines        = "rolling_median_lines_total"
	NameWindowLen    = "rolling_median_window_transactions"
	NameParticipants = "rolling_median_participants"
	NameMedian       = "rolling_median_degree"
	NameWatermark    = "rolling_median_watermark_seconds"
	NameWindowLength = "rolling_median_window_length_seconds"
)

// StatsSource is implemented by stream.Processor.
type StatsSource interface {
	Stats() stream.Stats
}

// Families converts st into metric families in a stable order. The median
// and watermark gauges are omitted until they have a value.
func Families(st stream.Stats) []*dto.MetricFamily {
	out := []*dto.MetricFamily{
		counter(NameLines, "Input lines seen.", float64(st.Lines)),
		counter(NameAccepted, "Transactions accepted into the window.", float64(st.Accepted)),
		counter(NameStale, "Transactions rejected for arriving a full window behind the watermark.", float64(st.Stale)),
		counter(NameMalformed, "Input lines skipped as malformed.", float64(st.Malformed)),
		gauge(NameWindowLen, "Transactions currently in the window.", float64(st.WindowLen)),
		gauge(NameParticipants, "Participants with a non-zero degree.", float64(st.Participants)),
		gauge(NameWindowLength, "Configured window length.", st.Window.Seconds()),
	}
	if st.HasMedian {
		out = append(out, gauge(NameMedian, "Median degree after the last accepted transaction.", st.LastMedian))
	}
	if st.HasWatermark {
		out = append(out, gauge(NameWatermark, "Newest transaction timestamp seen, as Unix seconds.", float64(st.Watermark.Unix())))
	}
	return out
}

// Handler serves the text exposition for src.
func Handler(src StatsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		w.Header().Set("Content-Type", string(format))

		enc := expfmt.NewEncoder(w, format)
		for _, mf := range Families(src.Stats()) {
			if err := enc.Encode(mf); err != nil {
				slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
	})
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}
