package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"

	"github.com/RyanBlaney/activity-spectra/pkg/model"
	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
	"github.com/RyanBlaney/activity-spectra/pkg/signal"
)

// Config holds the streaming ingest settings
type Config struct {
	TopicPrefix   string        `mapstructure:"topic_prefix"`
	QoS           byte          `mapstructure:"qos"`
	ShiftInterval time.Duration `mapstructure:"shift_interval"`
}

// Result is one streaming prediction for a device
type Result struct {
	DeviceID  string `json:"device_id"`
	WindowEnd int64  `json:"window_end"`
	*model.Prediction
}

// Ingestor consumes accelerometer samples per device and classifies the most
// recent window on a fixed interval
type Ingestor struct {
	config    Config
	pipeline  *pipeline.Pipeline
	predictor *model.Predictor
	transport Transport
	store     Store
	logger    logging.Logger

	retention int64

	mu      sync.Mutex
	buffers map[string]*DeviceBuffer
}

// NewIngestor creates a new ingestor. store may be nil.
func NewIngestor(cfg Config, p *pipeline.Pipeline, predictor *model.Predictor, transport Transport, store Store, logger logging.Logger) (*Ingestor, error) {
	if p == nil || predictor == nil || transport == nil {
		return nil, fmt.Errorf("pipeline, predictor and transport are required")
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "activity"
	}
	if cfg.ShiftInterval <= 0 {
		cfg.ShiftInterval = time.Second
	}

	// keep two windows of history per device
	windowMs := int64(p.Config().WindowSizeSec * 1000)

	return &Ingestor{
		config:    cfg,
		pipeline:  p,
		predictor: predictor,
		transport: transport,
		store:     store,
		logger:    logger.WithFields(logging.Fields{"component": "stream_ingest"}),
		retention: 2 * windowMs,
		buffers:   make(map[string]*DeviceBuffer),
	}, nil
}

// SamplesTopic is the wildcard subscription for every device
func (in *Ingestor) SamplesTopic() string {
	return in.config.TopicPrefix + "/+/samples"
}

// PredictionTopic is where results of one device are published
func (in *Ingestor) PredictionTopic(deviceID string) string {
	return in.config.TopicPrefix + "/" + deviceID + "/prediction"
}

// Run subscribes and processes devices every shift interval until ctx is done
func (in *Ingestor) Run(ctx context.Context) error {
	topic := in.SamplesTopic()
	if err := in.transport.Subscribe(topic, in.config.QoS, in.HandleMessage); err != nil {
		return err
	}
	defer func() {
		if err := in.transport.Unsubscribe(topic); err != nil {
			in.logger.Warn("Failed to unsubscribe", logging.Fields{"topic": topic, "error": err.Error()})
		}
	}()

	in.logger.Info("Streaming ingest started", logging.Fields{
		"topic":          topic,
		"shift_interval": in.config.ShiftInterval.String(),
		"retention_ms":   in.retention,
	})

	ticker := time.NewTicker(in.config.ShiftInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("Streaming ingest stopped")
			return nil
		case <-ticker.C:
			in.ProcessAll(ctx)
		}
	}
}

// HandleMessage parses a samples payload for the device named in topic.
// The payload is one sample object or an array of them.
func (in *Ingestor) HandleMessage(topic string, payload []byte) error {
	deviceID, ok := in.deviceFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	samples, err := decodeSamples(payload)
	if err != nil {
		return fmt.Errorf("device %s: %w", deviceID, err)
	}

	in.buffer(deviceID).Add(samples...)
	return nil
}

// ProcessAll runs ProcessDevice for every device with new data
func (in *Ingestor) ProcessAll(ctx context.Context) []*Result {
	in.mu.Lock()
	devices := make([]string, 0, len(in.buffers))
	for id := range in.buffers {
		devices = append(devices, id)
	}
	in.mu.Unlock()

	var results []*Result
	for _, id := range devices {
		result, err := in.ProcessDevice(ctx, id)
		if err != nil {
			in.logger.Error(err, "Failed to process device window", logging.Fields{"device_id": id})
			continue
		}
		if result != nil {
			results = append(results, result)
		}
	}
	return results
}

// ProcessDevice classifies the latest full window of one device. It returns
// nil without error when the device has too few samples or no new data.
func (in *Ingestor) ProcessDevice(ctx context.Context, deviceID string) (*Result, error) {
	ws := in.pipeline.Config().WindowSamples()
	window, ok := in.buffer(deviceID).Latest(ws)
	if !ok {
		return nil, nil
	}

	buf := signal.NewBuffer(window)
	var values []float64
	if in.pipeline.Config().Variant == pipeline.VariantRawAxis {
		interleaved, err := signal.Interleave(buf.Axis(signal.AxisX), buf.Axis(signal.AxisY), buf.Axis(signal.AxisZ))
		if err != nil {
			return nil, err
		}
		values = interleaved
	} else {
		values = signal.Values(buf.Magnitudes())
	}

	features, err := in.pipeline.RunSingle(values)
	if err != nil {
		return nil, err
	}
	prediction, err := in.predictor.Predict(ctx, features)
	if err != nil {
		return nil, err
	}

	result := &Result{
		DeviceID:   deviceID,
		WindowEnd:  window[len(window)-1].Timestamp,
		Prediction: prediction,
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	if err := in.transport.Publish(in.PredictionTopic(deviceID), in.config.QoS, false, payload); err != nil {
		return nil, err
	}
	if in.store != nil {
		if err := in.store.Save(ctx, result); err != nil {
			return nil, err
		}
	}

	in.logger.Debug("Window classified", logging.Fields{
		"device_id":       deviceID,
		"window_end":      result.WindowEnd,
		"predicted_class": result.Class,
	})
	return result, nil
}

// Devices returns the ids of devices that have sent samples
func (in *Ingestor) Devices() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	ids := make([]string, 0, len(in.buffers))
	for id := range in.buffers {
		ids = append(ids, id)
	}
	return ids
}

func (in *Ingestor) buffer(deviceID string) *DeviceBuffer {
	in.mu.Lock()
	defer in.mu.Unlock()
	b, ok := in.buffers[deviceID]
	if !ok {
		b = NewDeviceBuffer(in.retention)
		in.buffers[deviceID] = b
	}
	return b
}

func (in *Ingestor) deviceFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, in.config.TopicPrefix+"/")
	if !ok {
		return "", false
	}
	deviceID, ok := strings.CutSuffix(rest, "/samples")
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", false
	}
	return deviceID, true
}

func decodeSamples(payload []byte) ([]signal.Sample, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if trimmed[0] == '[' {
		var samples []signal.Sample
		if err := json.Unmarshal(trimmed, &samples); err != nil {
			return nil, fmt.Errorf("invalid samples payload: %w", err)
		}
		return samples, nil
	}

	var sample signal.Sample
	if err := json.Unmarshal(trimmed, &sample); err != nil {
		return nil, fmt.Errorf("invalid sample payload: %w", err)
	}
	return []signal.Sample{sample}, nil
}
