package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
)

// FluxQuerier is the part of api.QueryAPI the history handler needs.
type FluxQuerier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// SeriesPoint is one stored value of one entity field.
type SeriesPoint struct {
	Time  string  `json:"time"` // RFC3339
	Kind  string  `json:"kind"`
	Index string  `json:"index,omitempty"`
	Field string  `json:"field"`
	Value float64 `json:"value"`
}

type historyParams struct {
	Source  string
	Minutes int
	Limit   int
	Kind    string
	Field   string
}

func parseHistory(r *http.Request) historyParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	source := strings.ToLower(strings.TrimSpace(q.Get("source")))
	if source == "" {
		source = "auto"
	}
	return historyParams{
		Source:  source,
		Minutes: get("minutes", 60, 1, 7*24*60),
		Limit:   get("limit", 500, 1, 5000),
		Kind:    strings.TrimSpace(q.Get("kind")),
		Field:   strings.TrimSpace(q.Get("field")),
	}
}

func buildFlux(bucket, measurement string, p historyParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", bucket)
	fmt.Fprintf(&b, "  |> range(start: -%dm)\n", p.Minutes)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q)\n", measurement)
	if p.Kind != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.kind == %q)\n", p.Kind)
	}
	if p.Field != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r._field == %q)\n", p.Field)
	}
	b.WriteString("  |> keep(columns: [\"_time\",\"_value\",\"_field\",\"kind\",\"index\"])\n")
	b.WriteString("  |> group()\n")
	b.WriteString("  |> sort(columns: [\"_time\"], desc: true)\n")
	fmt.Fprintf(&b, "  |> limit(n:%d)\n", p.Limit)
	return b.String()
}

// HistoryHandler serves GET /stats/history. source=influx reads the time series from
// InfluxDB, source=memory the in-process ring; auto tries InfluxDB first.
type HistoryHandler struct {
	query       FluxQuerier
	bucket      string
	measurement string
	memory      *simulation.History
	timeout     time.Duration
}

func NewHistoryHandler(q FluxQuerier, bucket, measurement string, memory *simulation.History) *HistoryHandler {
	if measurement == "" {
		measurement = "farm_sim"
	}
	return &HistoryHandler{
		query:       q,
		bucket:      bucket,
		measurement: sanitizeMeasurement(measurement),
		memory:      memory,
		timeout:     3 * time.Second,
	}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := parseHistory(r)

	var (
		out  []SeriesPoint
		used string
	)
	if h.query != nil && (p.Source == "influx" || p.Source == "auto") {
		series, err := h.fromInflux(r.Context(), p)
		if err == nil {
			out, used = series, "influx"
		} else {
			w.Header().Set("X-Error", "influx-query-error")
		}
	}
	if used == "" && p.Source != "influx" {
		out, used = h.fromMemory(p), "memory"
	}
	if used == "" {
		out, used = []SeriesPoint{}, "none"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Data-Source", used)
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HistoryHandler) fromInflux(ctx context.Context, p historyParams) ([]SeriesPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	res, err := h.query.Query(ctx, buildFlux(h.bucket, h.measurement, p))
	if err != nil {
		return nil, err
	}
	defer res.Close()

	out := make([]SeriesPoint, 0, p.Limit)
	for res.Next() {
		rec := res.Record()
		sp := SeriesPoint{
			Time:  rec.Time().UTC().Format(time.RFC3339Nano),
			Field: rec.Field(),
			Value: toFloat(rec.Value()),
		}
		if v, ok := rec.ValueByKey("kind").(string); ok {
			sp.Kind = v
		}
		if v, ok := rec.ValueByKey("index").(string); ok {
			sp.Index = v
		}
		out = append(out, sp)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// fromMemory flattens the ring into the same series shape, newest first.
func (h *HistoryHandler) fromMemory(p historyParams) []SeriesPoint {
	out := []SeriesPoint{}
	if h.memory == nil {
		return out
	}
	samples := h.memory.Samples()
	for i := len(samples) - 1; i >= 0 && len(out) < p.Limit; i-- {
		for _, pt := range SnapshotPoints(h.measurement, samples[i]) {
			var kind, index string
			for _, t := range pt.TagList() {
				switch t.Key {
				case "kind":
					kind = t.Value
				case "index":
					index = t.Value
				}
			}
			if p.Kind != "" && kind != p.Kind {
				continue
			}
			for _, f := range pt.FieldList() {
				if p.Field != "" && f.Key != p.Field {
					continue
				}
				out = append(out, SeriesPoint{
					Time:  pt.Time().UTC().Format(time.RFC3339Nano),
					Kind:  kind,
					Index: index,
					Field: f.Key,
					Value: toFloat(f.Value),
				})
				if len(out) == p.Limit {
					return out
				}
			}
		}
	}
	return out
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return 0
}
