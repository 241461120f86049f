package smq

import (
	"context"
	"math"
	"time"

	"github.com/oriys/smq/internal/logging"
	"github.com/oriys/smq/internal/metrics"
	"github.com/oriys/smq/internal/observability"
	"github.com/oriys/smq/internal/transport"
)

const (
	defaultBackoffBaseMS = 100
	defaultBackoffMaxMS  = 5000
)

// pusherLoop pops Requests from outgoing and performs them against the
// broker, requeueing at the tail on failure. It exits once Running() is
// false; because it polls Running only between iterations, the longest it
// can take to observe shutdown is one queue timeout plus one HTTP timeout.
func (c *Client) pusherLoop() {
	defer c.wg.Done()

	attempt := make(map[string]int)

	for c.Running() {
		req, ok := c.outgoing.Pop(c.timeout)
		if !ok {
			continue
		}

		ctx, span := c.startSpan(context.Background(), "publish")
		span.SetAttributes(observability.AttrMethod.String(string(req.Method)))
		id := requestID()
		span.SetAttributes(observability.AttrRequestID.String(id))
		start := time.Now()
		_, err := c.transport.Perform(ctx, toTransportRequest(req), c.timeout)
		durationMs := time.Since(start).Milliseconds()
		span.SetAttributes(observability.AttrDurationMs.Int64(durationMs))
		if err != nil {
			observability.SetSpanError(span, err)
		} else {
			observability.SetSpanOK(span)
		}
		span.End()

		metrics.RecordTransportResult(string(req.Method), durationMs, err)

		traceID, spanID := observability.GetTraceID(ctx), observability.GetSpanID(ctx)

		if err == nil {
			delete(attempt, req.URL)
			logging.Default().Log(&logging.DeliveryLog{
				RequestID: id, TraceID: traceID, SpanID: spanID, Operation: "pusher", URL: req.URL,
				DurationMs: durationMs, Success: true, BodySize: len(req.Body),
			})
			continue
		}

		n := attempt[req.URL] + 1
		attempt[req.URL] = n
		metrics.RecordRetry(string(req.Method))
		logging.OpWithTrace(traceID, spanID).Warn("publish failed, requeueing", "url", req.URL, "attempt", n, "error", err)
		logging.Default().Log(&logging.DeliveryLog{
			RequestID: id, TraceID: traceID, SpanID: spanID, Operation: "pusher", URL: req.URL,
			DurationMs: durationMs, Success: false, Error: err.Error(), Retries: n,
		})

		if c.retry.BackoffEnabled {
			time.Sleep(calcBackoff(n, c.retry.BaseMS, c.retry.MaxMS))
		}

		// Requeue at the tail behind any newer work. If the queue has since
		// been shut down this is a silent no-op and the Request is dropped;
		// that mirrors the documented push-after-shutdown contract rather
		// than attempting to recover it.
		_ = c.outgoing.Push(req)
	}
}

// pullerLoop long-polls the Client's own mailbox and wraps each returned
// body into an incoming Request with method and URL stripped.
func (c *Client) pullerLoop() {
	defer c.wg.Done()

	pollURL := c.serverURL + "/queue/" + c.name

	for c.Running() {
		req := transport.Request{Method: string(MethodGET), URL: pollURL}

		ctx, span := c.startSpan(context.Background(), "retrieve")
		span.SetAttributes(observability.AttrMethod.String(req.Method))
		id := requestID()
		span.SetAttributes(observability.AttrRequestID.String(id))
		start := time.Now()
		body, err := c.transport.Perform(ctx, req, c.timeout)
		durationMs := time.Since(start).Milliseconds()
		span.SetAttributes(observability.AttrDurationMs.Int64(durationMs))

		metrics.RecordTransportResult(req.Method, durationMs, err)

		if err != nil {
			// No new messages, or a transient failure: either way, loop.
			observability.SetSpanError(span, err)
			span.End()
			continue
		}
		observability.SetSpanOK(span)
		span.End()

		logging.Default().Log(&logging.DeliveryLog{
			RequestID: id, TraceID: observability.GetTraceID(ctx), SpanID: observability.GetSpanID(ctx), Operation: "puller", URL: pollURL,
			DurationMs: durationMs, Success: true, BodySize: len(body),
		})

		// The queue is shut down underneath us only during Client.Shutdown,
		// in which case the push is rejected and the body is simply dropped.
		_ = c.incoming.Push(NewRequest("", "", body))
		metrics.SetQueueDepth("incoming", c.incoming.Len())
	}
}

func toTransportRequest(r Request) transport.Request {
	return transport.Request{Method: string(r.Method), URL: r.URL, Body: r.Body}
}

// calcBackoff computes an exponential backoff capped at maxMS, used only
// when RetryConfig.BackoffEnabled opts into it.
func calcBackoff(attempt, baseMS, maxMS int) time.Duration {
	if baseMS <= 0 {
		baseMS = defaultBackoffBaseMS
	}
	if maxMS <= 0 {
		maxMS = defaultBackoffMaxMS
	}
	if maxMS < baseMS {
		maxMS = baseMS
	}
	if attempt < 1 {
		attempt = 1
	}

	ms := float64(baseMS) * math.Pow(2, float64(attempt-1))
	if ms > float64(maxMS) {
		ms = float64(maxMS)
	}
	return time.Duration(ms) * time.Millisecond
}
