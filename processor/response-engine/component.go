package responseengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/engine"
	"github.com/c360studio/irops/model"
	"github.com/c360studio/irops/persist"
	"github.com/c360studio/irops/planner"
	"github.com/c360studio/irops/progress"
	"github.com/c360studio/irops/reasoning"
	"github.com/c360studio/irops/specialist"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Component implements the response engine processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	engine *engine.Engine

	// JetStream consumer
	consumer jetstream.Consumer
	stream   jetstream.Stream

	// KV bucket for storing run responses (for later queries)
	responseBucket jetstream.KeyValue

	// Optional snapshot drop-directory watcher
	snapWatcher *SnapshotWatcher

	// Lifecycle state machine
	// States: 0=stopped, 1=starting, 2=running, 3=stopping
	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	runsProcessed  atomic.Int64
	runsFailed     atomic.Int64
	lastActivityMu sync.RWMutex
	lastActivity   time.Time
}

const (
	stateStopped  = 0
	stateStarting = 1
	stateRunning  = 2
	stateStopping = 3
)

// NewComponent creates a new response engine processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.StreamName == "" {
		config.StreamName = defaults.StreamName
	}
	if config.ConsumerName == "" {
		config.ConsumerName = defaults.ConsumerName
	}
	if config.InputSubjectPattern == "" {
		config.InputSubjectPattern = defaults.InputSubjectPattern
	}
	if config.OutputSubjectPrefix == "" {
		config.OutputSubjectPrefix = defaults.OutputSubjectPrefix
	}
	if config.ProgressSubjectPrefix == "" {
		config.ProgressSubjectPrefix = defaults.ProgressSubjectPrefix
	}
	if config.CompletedSubject == "" {
		config.CompletedSubject = defaults.CompletedSubject
	}
	if config.DetectionThresholdPercent == 0 {
		config.DetectionThresholdPercent = defaults.DetectionThresholdPercent
	}
	if config.MaxScenarios == 0 {
		config.MaxScenarios = defaults.MaxScenarios
	}
	if config.CallTimeoutSeconds == 0 {
		config.CallTimeoutSeconds = defaults.CallTimeoutSeconds
	}
	if config.VariantTimeoutSeconds == 0 {
		config.VariantTimeoutSeconds = defaults.VariantTimeoutSeconds
	}
	if config.MaxConcurrentVariants == 0 {
		config.MaxConcurrentVariants = defaults.MaxConcurrentVariants
	}
	if config.RunTimeoutSeconds == 0 {
		config.RunTimeoutSeconds = defaults.RunTimeoutSeconds
	}
	if config.ResponseBucketName == "" {
		config.ResponseBucketName = defaults.ResponseBucketName
	}
	if config.ResponseTTLHours == 0 {
		config.ResponseTTLHours = defaults.ResponseTTLHours
	}
	if config.Watch.DebounceDelay == "" {
		config.Watch.DebounceDelay = defaults.Watch.DebounceDelay
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := deps.GetLogger()

	eng, err := buildEngine(config, deps.NATSClient, logger)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return &Component{
		name:       "response-engine",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     logger,
		engine:     eng,
	}, nil
}

// buildEngine assembles the workflow engine from component configuration.
// The reasoning client resolves models through the global registry; when
// no provider is reachable the engine degrades to heuristic output
// instead of failing runs.
func buildEngine(config Config, nc *natsclient.Client, logger *slog.Logger) (*engine.Engine, error) {
	client := reasoning.NewClient(model.Global(),
		reasoning.WithLogger(logger),
		reasoning.WithCallStore(reasoning.GlobalCallStore()))

	gateCfg := disruption.DefaultGateConfig()
	gateCfg.DetectionThreshold = float64(config.DetectionThresholdPercent) / 100

	callTimeout := time.Duration(config.CallTimeoutSeconds) * time.Second
	opts := []engine.Option{
		engine.WithGate(disruption.NewGate(gateCfg)),
		engine.WithPlanner(planner.New(client,
			planner.WithMaxScenarios(config.MaxScenarios),
			planner.WithCallTimeout(callTimeout),
			planner.WithLogger(logger))),
		engine.WithRunner(specialist.NewRunner(client,
			specialist.WithCallTimeout(callTimeout),
			specialist.WithVariantTimeout(time.Duration(config.VariantTimeoutSeconds)*time.Second),
			specialist.WithMaxConcurrentVariants(config.MaxConcurrentVariants),
			specialist.WithLogger(logger))),
		engine.WithRunTimeout(time.Duration(config.RunTimeoutSeconds) * time.Second),
		engine.WithLogger(logger),
	}

	// Progress and plan publishing need NATS; without a client the engine
	// falls back to its no-op observer and store.
	if nc != nil {
		observer, err := progress.NewNATSObserver(nc,
			progress.WithSubjectPrefix(config.ProgressSubjectPrefix),
			progress.WithNATSLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create progress observer: %w", err)
		}
		store, err := persist.NewNATSStore(nc,
			persist.WithSubject(config.CompletedSubject),
			persist.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create plan store: %w", err)
		}
		opts = append(opts, engine.WithObserver(observer), engine.WithStore(store))
	}

	return engine.New(client, opts...), nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized response-engine",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"input_pattern", c.config.InputSubjectPattern)
	return nil
}

// Start begins processing run submissions.
// Uses a state machine to prevent race conditions between Start and Stop.
func (c *Component) Start(ctx context.Context) error {
	// Atomically transition from stopped to starting
	if !c.state.CompareAndSwap(stateStopped, stateStarting) {
		currentState := c.state.Load()
		if currentState == stateRunning || currentState == stateStarting {
			return fmt.Errorf("component already running or starting")
		}
		return fmt.Errorf("component in invalid state: %d", currentState)
	}

	// Ensure we transition to stopped if setup fails
	defer func() {
		if c.state.Load() == stateStarting {
			c.state.Store(stateStopped)
		}
	}()

	if c.natsClient == nil {
		return fmt.Errorf("NATS client required")
	}

	// Get JetStream context
	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	// Get stream
	stream, err := js.Stream(ctx, c.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", c.config.StreamName, err)
	}

	// Create or get consumer
	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: c.config.InputSubjectPattern,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * time.Duration(c.config.RunTimeoutSeconds) * time.Second,
		MaxDeliver:    3,
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerConfig)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	// Create or get KV bucket for run responses
	responseBucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      c.config.ResponseBucketName,
		Description: "Disruption run responses for later queries",
		TTL:         time.Duration(c.config.ResponseTTLHours) * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create response bucket: %w", err)
	}

	// Create cancellation context
	subCtx, cancel := context.WithCancel(ctx)

	// Optional snapshot drop directory
	var snapWatcher *SnapshotWatcher
	if c.config.Watch.Enabled {
		snapWatcher, err = NewSnapshotWatcher(c.config.Watch, c.config.Watch.Dir, c.logger)
		if err != nil {
			cancel()
			return fmt.Errorf("create snapshot watcher: %w", err)
		}
		if err := snapWatcher.Start(subCtx); err != nil {
			cancel()
			return fmt.Errorf("start snapshot watcher: %w", err)
		}
	}

	// Update state atomically with lock for complex state
	c.mu.Lock()
	c.stream = stream
	c.consumer = consumer
	c.responseBucket = responseBucket
	c.snapWatcher = snapWatcher
	c.cancel = cancel
	c.startTime = time.Now()
	c.mu.Unlock()

	// Transition to running
	c.state.Store(stateRunning)

	// Start consuming messages
	go c.consumeLoop(subCtx)
	if snapWatcher != nil {
		go c.watchLoop(subCtx, snapWatcher)
	}

	c.logger.Info("response-engine started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"subject", c.config.InputSubjectPattern,
		"watch_enabled", c.config.Watch.Enabled)

	return nil
}

// consumeLoop continuously consumes messages from the JetStream consumer.
func (c *Component) consumeLoop(ctx context.Context) {
	for {
		// Check context first
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Verify we're still running
		if c.state.Load() != stateRunning {
			return
		}

		// Fetch messages with a timeout
		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			// Check context before processing each message to prevent goroutine leak
			select {
			case <-ctx.Done():
				// NAK the message so it can be redelivered
				if err := msg.Nak(); err != nil {
					c.logger.Warn("Failed to NAK message during shutdown", "error", err)
				}
				return
			default:
				c.handleMessage(ctx, msg)
			}
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			c.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// handleMessage processes a single run submission.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	// Check for context cancellation before expensive operations
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message during shutdown", "error", err)
		}
		return
	}

	c.runsProcessed.Add(1)
	c.updateLastActivity()

	// Parse the request
	var baseMsg message.BaseMessage
	if err := json.Unmarshal(msg.Data(), &baseMsg); err != nil {
		c.logger.Error("Failed to parse message", "error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	// Extract request payload
	var req RunRequest
	payloadBytes, err := json.Marshal(baseMsg.Payload())
	if err != nil {
		c.logger.Error("Failed to marshal payload", "error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}
	if err := json.Unmarshal(payloadBytes, &req); err != nil {
		c.logger.Error("Failed to unmarshal request", "error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	c.logger.Info("Processing run submission",
		"request_id", req.RequestID,
		"flight", req.Snapshot.FlightNumber,
		"delay_minutes", req.Snapshot.DelayMinutes)

	// Validate request
	if err := req.Validate(); err != nil {
		c.logger.Error("Invalid request", "error", err)
		c.runsFailed.Add(1)
		c.publishErrorResponse(ctx, &req, fmt.Sprintf("invalid request: %v", err))
		// ACK invalid requests - they won't succeed on retry
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	// Run the workflow
	result, err := c.engine.Run(ctx, req.Snapshot)
	if err != nil {
		c.runsFailed.Add(1)
		if disruption.IsInvalidContext(err) {
			c.logger.Error("Snapshot rejected",
				"request_id", req.RequestID,
				"error", err)
			c.publishErrorResponse(ctx, &req, err.Error())
			// ACK rejected snapshots - they won't succeed on retry
			if err := msg.Ack(); err != nil {
				c.logger.Warn("Failed to ACK message", "error", err)
			}
			return
		}
		// Aborted mid-run, typically shutdown. NAK so a fresh run happens
		// on redelivery.
		c.logger.Error("Run aborted",
			"request_id", req.RequestID,
			"error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	response := &RunResponse{
		RequestID:       req.RequestID,
		RunID:           result.RunID,
		State:           string(result.State),
		RiskProbability: result.Gate.RiskProbability,
		Plan:            result.Plan,
	}

	// Publish response
	if err := c.publishResponse(ctx, response); err != nil {
		c.logger.Error("Failed to publish response",
			"request_id", req.RequestID,
			"error", err)
		// NAK if we couldn't publish - should retry
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK message", "error", err)
	}

	c.logger.Info("Run completed and published",
		"request_id", req.RequestID,
		"run_id", result.RunID,
		"state", result.State)
}

// watchLoop submits dropped snapshot files through the run stream so
// file-initiated runs follow the same path as message submissions.
func (c *Component) watchLoop(ctx context.Context, watcher *SnapshotWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events():
			if !ok {
				return
			}
			c.submitSnapshotFile(ctx, event)
		}
	}
}

// submitSnapshotFile reads a dropped snapshot file and publishes it as a
// run submission.
func (c *Component) submitSnapshotFile(ctx context.Context, event SnapshotEvent) {
	data, err := os.ReadFile(event.AbsPath)
	if err != nil {
		c.logger.Warn("Failed to read dropped snapshot",
			"path", event.Path,
			"error", err)
		return
	}

	var snap disruption.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("Dropped snapshot is not valid JSON, skipping",
			"path", event.Path,
			"error", err)
		return
	}

	req := &RunRequest{
		RequestID: uuid.NewString(),
		Snapshot:  snap,
	}

	baseMsg := message.NewBaseMessage(
		message.Type{Domain: "disruption", Category: "submitted", Version: "v1"},
		req,
		"response-engine",
	)

	msgData, err := json.Marshal(baseMsg)
	if err != nil {
		c.logger.Warn("Failed to marshal snapshot submission",
			"path", event.Path,
			"error", err)
		return
	}

	if err := c.natsClient.Publish(ctx, c.config.InputSubjectPattern, msgData); err != nil {
		c.logger.Warn("Failed to publish snapshot submission",
			"path", event.Path,
			"error", err)
		return
	}

	c.logger.Info("Snapshot file submitted",
		"path", event.Path,
		"request_id", req.RequestID,
		"flight", snap.FlightNumber)
}

// publishResponse publishes a run response and stores it in KV for queries.
func (c *Component) publishResponse(ctx context.Context, response *RunResponse) error {
	baseMsg := message.NewBaseMessage(
		message.Type{Domain: "disruption", Category: "response", Version: "v1"},
		response,
		"response-engine",
	)

	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", c.config.OutputSubjectPrefix, response.RequestID)
	if err := c.natsClient.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish response: %w", err)
	}

	// Store response in KV bucket for later queries
	if err := c.storeRunResponse(ctx, response); err != nil {
		// Log but don't fail the request - KV storage is secondary
		c.logger.Warn("Failed to store run response in KV",
			"request_id", response.RequestID,
			"error", err)
	}

	return nil
}

// storeRunResponse persists a run response to the KV bucket for queries.
func (c *Component) storeRunResponse(ctx context.Context, response *RunResponse) error {
	c.mu.RLock()
	bucket := c.responseBucket
	c.mu.RUnlock()

	if bucket == nil {
		return fmt.Errorf("response bucket not initialized")
	}

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	_, err = bucket.Put(ctx, response.RequestID, data)
	return err
}

// publishErrorResponse publishes an error response.
func (c *Component) publishErrorResponse(ctx context.Context, req *RunRequest, errMsg string) {
	response := &RunResponse{
		RequestID: req.RequestID,
		Error:     errMsg,
	}

	if err := c.publishResponse(ctx, response); err != nil {
		c.logger.Error("Failed to publish error response",
			"request_id", req.RequestID,
			"error", err)
	}
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	// Atomically transition from running to stopping
	if !c.state.CompareAndSwap(stateRunning, stateStopping) {
		currentState := c.state.Load()
		if currentState == stateStopped {
			return nil // Already stopped
		}
		if currentState == stateStopping {
			return nil // Already stopping
		}
		return fmt.Errorf("component in unexpected state: %d", currentState)
	}

	// Get and clear cancel function and watcher
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	snapWatcher := c.snapWatcher
	c.snapWatcher = nil
	c.mu.Unlock()

	// Cancel context to stop consume and watch loops
	if cancel != nil {
		cancel()
	}
	if snapWatcher != nil {
		if err := snapWatcher.Stop(); err != nil {
			c.logger.Warn("Failed to stop snapshot watcher", "error", err)
		}
	}

	// Transition to stopped
	c.state.Store(stateStopped)

	c.logger.Info("response-engine stopped",
		"runs_processed", c.runsProcessed.Load(),
		"runs_failed", c.runsFailed.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "response-engine",
		Type:        "processor",
		Description: "Runs the disruption-response workflow for submitted operational snapshots",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return responseEngineSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	state := c.state.Load()
	running := state == stateRunning

	c.mu.RLock()
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	switch state {
	case stateStarting:
		status = "starting"
	case stateRunning:
		status = "running"
	case stateStopping:
		status = "stopping"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.runsFailed.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
