// Package stats keeps the process-wide request counters. Counters are
// plain atomics so concurrent requests never lose updates; there is no
// other shared state between requests.
package stats

import "sync/atomic"

type Registry struct {
	requests atomic.Int64
	errors   atomic.Int64
	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

func New() *Registry {
	return &Registry{}
}

// RecordSuccess accounts one completed request. Saved bytes may be
// negative when the output grew; the accumulated total reflects that.
func (r *Registry) RecordSuccess(bytesIn, bytesOut int64) {
	r.requests.Add(1)
	r.bytesIn.Add(bytesIn)
	r.bytesOut.Add(bytesOut)
}

func (r *Registry) RecordError() {
	r.errors.Add(1)
}

// Snapshot is the JSON shape served by the stats endpoint.
type Snapshot struct {
	RequestsProcessed  int64 `json:"requests_processed"`
	Errors             int64 `json:"errors"`
	BytesIn            int64 `json:"bytes_in"`
	BytesOut           int64 `json:"bytes_out"`
	BytesSaved         int64 `json:"bytes_saved"`
	AvgSavedPerRequest int64 `json:"avg_saved_bytes_per_request"`
}

func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		RequestsProcessed: r.requests.Load(),
		Errors:            r.errors.Load(),
		BytesIn:           r.bytesIn.Load(),
		BytesOut:          r.bytesOut.Load(),
	}
	s.BytesSaved = s.BytesIn - s.BytesOut
	if s.RequestsProcessed > 0 {
		s.AvgSavedPerRequest = s.BytesSaved / s.RequestsProcessed
	}
	return s
}
