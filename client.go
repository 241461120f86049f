// Package smq implements a pub/sub client for a Simple Message Queue
// broker: a concurrent core that decouples publish/retrieve calls from the
// network I/O needed to exchange messages over HTTP.
package smq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/oriys/smq/internal/logging"
	"github.com/oriys/smq/internal/metrics"
	"github.com/oriys/smq/internal/observability"
	"github.com/oriys/smq/internal/queue"
	"github.com/oriys/smq/internal/transport"
)

// DefaultTimeout is applied to both queue waits and HTTP exchanges when a
// Client is created without an explicit timeout.
const DefaultTimeout = 2000 * time.Millisecond

// RetryConfig controls the outgoing worker's behavior on a failed publish.
// The documented current policy — push back on tail, no backoff, no cap —
// is BackoffEnabled: false, the zero value.
type RetryConfig struct {
	BackoffEnabled bool
	BaseMS         int
	MaxMS          int
}

// Config parameterizes Client construction.
type Config struct {
	Name    string
	Host    string
	Port    int
	Timeout time.Duration
	Retry   RetryConfig
}

// Client is a process-local coordinator for one mailbox identity. It owns
// two Queues (outgoing, incoming) and two worker goroutines (pusher,
// puller); see internal/queue and worker.go.
type Client struct {
	mu      sync.Mutex
	running bool

	name      string
	serverURL string
	timeout   time.Duration
	retry     RetryConfig

	outgoing *queue.Queue[Request]
	incoming *queue.Queue[Request]

	transport *transport.Transport

	wg sync.WaitGroup
}

// New creates a Client for mailbox name against the broker at host:port,
// using DefaultTimeout, and starts its two workers immediately.
func New(name, host string, port int) (*Client, error) {
	return NewWithConfig(Config{Name: name, Host: host, Port: port})
}

// NewWithConfig creates a Client per cfg. Workers start immediately; the
// Client is live until Shutdown then Delete.
func NewWithConfig(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("smq: name is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("smq: host is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		running:   true,
		name:      cfg.Name,
		serverURL: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		timeout:   timeout,
		retry:     cfg.Retry,
		outgoing:  queue.New[Request](),
		incoming:  queue.New[Request](),
		transport: transport.New(),
	}

	c.wg.Add(2)
	go c.pusherLoop()
	go c.pullerLoop()

	logging.Op().Info("smq client started", "name", c.name, "server", c.serverURL, "timeout_ms", timeout.Milliseconds())
	return c, nil
}

// Publish pushes a PUT {server}/topic/{topic} Request carrying body onto
// the outgoing queue. A no-op if the Client is not running.
func (c *Client) Publish(topic string, body []byte) {
	if !c.Running() {
		return
	}
	url := fmt.Sprintf("%s/topic/%s", c.serverURL, topic)
	c.enqueueOutgoing("publish", topic, NewRequest(MethodPUT, url, body))
}

// Subscribe pushes a PUT {server}/subscription/{name}/{topic} Request with
// no body onto the outgoing queue. A no-op if the Client is not running.
func (c *Client) Subscribe(topic string) {
	if !c.Running() {
		return
	}
	url := fmt.Sprintf("%s/subscription/%s/%s", c.serverURL, c.name, topic)
	c.enqueueOutgoing("subscribe", topic, NewRequest(MethodPUT, url, nil))
}

// Unsubscribe pushes a DELETE {server}/subscription/{name}/{topic} Request
// with no body onto the outgoing queue. A no-op if the Client is not running.
func (c *Client) Unsubscribe(topic string) {
	if !c.Running() {
		return
	}
	url := fmt.Sprintf("%s/subscription/%s/%s", c.serverURL, c.name, topic)
	c.enqueueOutgoing("unsubscribe", topic, NewRequest(MethodDELETE, url, nil))
}

func (c *Client) enqueueOutgoing(operation, topic string, r Request) {
	_, span := c.startSpan(context.Background(), operation)
	span.SetAttributes(observability.AttrTopic.String(topic))
	defer span.End()

	if err := c.outgoing.Push(r); err != nil {
		// The caller retains ownership of r; it is simply not enqueued.
		observability.SetSpanError(span, err)
		logging.Op().Debug("push rejected, client shutting down", "operation", operation, "url", r.URL)
		return
	}
	observability.SetSpanOK(span)
	metrics.RecordPublish(operation)
	metrics.SetQueueDepth("outgoing", c.outgoing.Len())
}

// Retrieve pops one body from the incoming queue, waiting up to the
// Client's timeout. Returns nil, false if the Client is not running or the
// wait times out. The returned slice is owned by the caller and remains
// valid after the Client is shut down and deleted.
func (c *Client) Retrieve() ([]byte, bool) {
	if !c.Running() {
		return nil, false
	}
	r, ok := c.incoming.Pop(c.timeout)
	if !ok {
		metrics.RecordRetrieve("timeout")
		return nil, false
	}
	metrics.RecordRetrieve("ok")
	metrics.SetQueueDepth("incoming", c.incoming.Len())
	return r.Body, true
}

// OutgoingDepth reports the current number of Requests waiting to be sent.
func (c *Client) OutgoingDepth() int {
	return c.outgoing.Len()
}

// IncomingDepth reports the current number of Requests waiting to be
// retrieved.
func (c *Client) IncomingDepth() int {
	return c.incoming.Len()
}

// Running reports whether the Client is still live.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Shutdown is idempotent: it shuts down both queues, marks the Client as no
// longer running, and joins both workers. Safe to call more than once; the
// second and later calls are no-ops.
func (c *Client) Shutdown() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.outgoing.Shutdown()
	c.incoming.Shutdown()
	c.wg.Wait()

	logging.Op().Info("smq client stopped", "name", c.name)
}

// Delete drains and discards any residual queued Requests. Callers must
// call Shutdown first.
func (c *Client) Delete() {
	c.outgoing.Delete()
	c.incoming.Delete()
}

func (c *Client) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if !observability.Enabled() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return observability.StartSpan(ctx, "smq."+operation,
		observability.AttrClientName.String(c.name),
		observability.AttrOperation.String(operation),
	)
}

func requestID() string {
	return uuid.NewString()
}
