// Package telemetry records stage transitions as InfluxDB points.
//
// Writes are non-blocking and batched by the InfluxDB client; the main loop
// never waits on the network. Async write failures are logged.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// Measurement is the InfluxDB measurement name for stage transitions.
const Measurement = "irrigation_stage"

const (
	defaultConnectTimeout = 10 * time.Second
	defaultBatchSize      = 20
	defaultFlushInterval  = 10 // seconds

	millisecondsPerSecond = 1000
)

var (
	// ErrDisabled indicates telemetry is disabled in configuration.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)

// Recorder receives every stage transition emitted by the sequencer.
type Recorder interface {
	Record(e logic.Event)
	Close() error
}

// Nop discards events. Used when telemetry is disabled or unreachable.
type Nop struct{}

func (Nop) Record(logic.Event) {}
func (Nop) Close() error       { return nil }

// Options configures the InfluxDB connection.
type Options struct {
	Enabled       bool
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     int
	FlushInterval int // seconds
}

// pointWriter is the subset of api.WriteAPI used by InfluxRecorder.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxRecorder writes stage transitions to InfluxDB. Safe for concurrent use.
type InfluxRecorder struct {
	client influxdb2.Client
	writer pointWriter

	mu     sync.Mutex
	closed bool
}

// Connect creates the InfluxDB client and verifies the server answers a ping.
// Returns ErrDisabled when opts.Enabled is false.
func Connect(ctx context.Context, opts Options) (*InfluxRecorder, error) {
	if !opts.Enabled {
		return nil, ErrDisabled
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	client := influxdb2.NewClientWithOptions(
		opts.URL,
		opts.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnectionFailed, opts.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s not healthy", ErrConnectionFailed, opts.URL)
	}

	writeAPI := client.WriteAPI(opts.Org, opts.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Printf("telemetry: write failed: %v", err)
		}
	}()

	log.Printf("telemetry: writing to %s (org=%s bucket=%s)", opts.URL, opts.Org, opts.Bucket)
	return &InfluxRecorder{client: client, writer: writeAPI}, nil
}

// Record queues a point for the event. No-op after Close.
func (r *InfluxRecorder) Record(e logic.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.writer.WritePoint(stagePoint(e))
}

// Close flushes pending points and closes the client.
func (r *InfluxRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.writer.Flush()
	if r.client != nil {
		r.client.Close()
	}
	return nil
}

func stagePoint(e logic.Event) *write.Point {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		Measurement,
		map[string]string{
			"actuator": e.Actuator.String(),
			"status":   e.Status,
		},
		map[string]interface{}{
			"stage":    e.Stage,
			"on":       e.On,
			"cycle_id": e.CycleID,
		},
		ts,
	)
}
