// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracehandler runs invocations under measurement and turns the
// events they record into reconstructed call trees.
//
// A Handler owns one recording session: the identity registry, the
// instruction catalog and the trace buffer. Instrumentation registers classes
// and instructions through ClassScope and writes events through Hooks; Capture
// resets the buffer, runs one invocation and reconstructs what it recorded.
package tracehandler // import "go.opentelemetry.io/exectrace/tracehandler"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/elastic/go-freelru"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/exectrace/calltree"
	"go.opentelemetry.io/exectrace/catalog"
	"go.opentelemetry.io/exectrace/config"
	"go.opentelemetry.io/exectrace/converter"
	"go.opentelemetry.io/exectrace/coverage"
	"go.opentelemetry.io/exectrace/libtrace"
	"go.opentelemetry.io/exectrace/recorder"
	"go.opentelemetry.io/exectrace/registry"
	"go.opentelemetry.io/exectrace/tracestore"
)

// ErrNoEvents is returned by Capture when the invocation recorded nothing.
var ErrNoEvents = errors.New("invocation recorded no events")

// ErrInvocationRunning is returned by Capture while an invocation left running
// by an interrupted capture has not returned yet.
var ErrInvocationRunning = errors.New("interrupted invocation still running")

// Result is the outcome of one Capture.
type Result struct {
	SessionID uuid.UUID
	// Hash labels the drained event sequence.
	Hash         libtrace.TraceHash
	Events       []recorder.RawEvent
	Instructions []calltree.Instruction
	Trace        *calltree.Trace
	Coverage     coverage.Coverage
	Outcome      coverage.Outcome

	// InvokeErr is the error returned by the invocation, or the context
	// error if it was interrupted.
	InvokeErr error
	// Interrupted is set if the invocation was stopped by timeout or
	// cancellation; the trace then covers the events up to that point.
	Interrupted bool
	Dropped     uint64
	Overflowed  bool

	// DumpID is set when the capture was written to the trace store.
	DumpID tracestore.ID
}

// Simplify returns the compact description of the captured call tree.
func (r *Result) Simplify() *converter.FunctionCall {
	if r.Trace == nil {
		return nil
	}
	return converter.Convert(r.Trace)
}

// Handler owns the state of one recording session.
type Handler struct {
	// Metrics
	decodeCacheHit  atomic.Uint64
	decodeCacheMiss atomic.Uint64

	cfg      config.Config
	registry *registry.Registry
	catalog  *catalog.Catalog
	buffer   *recorder.Buffer

	// decodeCache maps instruction ids to their decoded form, without the
	// activation. Entries never go stale: ids are never reassigned and
	// catalog records are immutable.
	decodeCache *lru.SyncedLRU[libtrace.InstructionID, calltree.Instruction]

	// store is nil unless dumps are enabled.
	store *tracestore.Store

	// captureMu ensures only one invocation is under measurement at a time.
	captureMu sync.Mutex
	// abandoned receives the result of an invocation that outlived its
	// capture. Guarded by captureMu.
	abandoned <-chan error
}

// New creates a Handler from cfg.
func New(ctx context.Context, cfg config.Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
		cfg.Dump()
	}

	decodeCache, err := lru.NewSynced[libtrace.InstructionID, calltree.Instruction](
		uint32(cfg.DecodeCacheSize), libtrace.InstructionID.Hash32)
	if err != nil {
		return nil, fmt.Errorf("failed to create decode cache: %v", err)
	}

	var buffer *recorder.Buffer
	if cfg.SharedBufferPath != "" {
		buffer, err = recorder.NewShared(cfg.SharedBufferPath, cfg.BufferCapacity)
	} else {
		buffer, err = recorder.New(cfg.BufferCapacity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace buffer: %w", err)
	}

	h := &Handler{
		cfg:         cfg,
		registry:    registry.New(),
		catalog:     catalog.New(),
		buffer:      buffer,
		decodeCache: decodeCache,
	}

	if cfg.DumpDirectory != "" {
		var s3client tracestore.S3API
		if cfg.S3Bucket != "" {
			client, err := tracestore.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
			if err != nil {
				_ = buffer.Close()
				return nil, fmt.Errorf("failed to create S3 client: %w", err)
			}
			s3client = client
		}
		h.store, err = tracestore.New(s3client, cfg.S3Bucket, cfg.DumpDirectory)
		if err != nil {
			_ = buffer.Close()
			return nil, fmt.Errorf("failed to open trace store: %w", err)
		}
		if err = h.store.RemoveLocalTempFiles(); err != nil {
			log.Warnf("Failed to clean up trace store: %v", err)
		}
	}
	return h, nil
}

// Close releases the trace buffer.
func (h *Handler) Close() error {
	return h.buffer.Close()
}

// Registry returns the identity registry of the session.
func (h *Handler) Registry() *registry.Registry { return h.registry }

// Catalog returns the instruction catalog of the session.
func (h *Handler) Catalog() *catalog.Catalog { return h.catalog }

// Store returns the trace store, or nil if dumps are disabled.
func (h *Handler) Store() *tracestore.Store { return h.store }

// Hooks returns the call-site contracts for instrumented code.
func (h *Handler) Hooks() recorder.Hooks { return h.buffer }

// RegisterClass returns the id of className, allocating one on first sight.
func (h *Handler) RegisterClass(className string) libtrace.ClassID {
	return h.registry.RegisterClass(className)
}

// Capture runs invoke as the invocation under measurement and reconstructs
// the events it recorded. Captures are serialized.
//
// If invoke does not return within the configured timeout, or ctx is done
// first, the buffer is sealed and the events recorded so far are
// reconstructed; Result.Interrupted is set. The goroutine running invoke is
// not waited for, invoke should honor the context it is given. The buffer
// stays sealed until that goroutine returns: the next Capture waits for it up
// to the invocation timeout, or until ctx is done, and fails with
// ErrInvocationRunning if it is still running.
//
// ErrNoEvents is returned, together with a Result, if nothing was recorded.
// Errors wrapping libtrace.ErrContractViolation indicate that the recorded
// events do not match the registered instructions.
func (h *Handler) Capture(ctx context.Context,
	invoke func(ctx context.Context) error) (*Result, error) {
	h.captureMu.Lock()
	defer h.captureMu.Unlock()

	if err := h.awaitAbandoned(ctx); err != nil {
		return nil, err
	}

	res := &Result{SessionID: uuid.New()}
	start := time.Now()

	h.buffer.Reset()
	res.Interrupted, res.InvokeErr = h.invoke(ctx, invoke)
	res.Events = h.buffer.Drain()
	res.Dropped = h.buffer.Dropped()
	res.Overflowed = h.buffer.Overflowed()
	res.Hash = recorder.Hash(res.Events)

	if res.Interrupted {
		log.Warnf("Capture %s interrupted after %v: %v", res.SessionID,
			time.Since(start), res.InvokeErr)
	}

	if err := h.reconstruct(res); err != nil {
		h.collectMetrics(res, err)
		return res, err
	}

	log.Debugf("Capture %s: %d events, hash %s, %d activations, depth %d, %v in %v",
		res.SessionID, len(res.Events), res.Hash, res.Trace.Len(), res.Trace.MaxDepth(),
		res.Outcome.Termination, time.Since(start))

	if h.store != nil {
		h.storeDump(ctx, res)
	}
	h.collectMetrics(res, nil)
	return res, nil
}

// invoke runs fn with the configured timeout. A panic in fn is reported as
// its error.
func (h *Handler) invoke(ctx context.Context,
	fn func(ctx context.Context) error) (interrupted bool, err error) {
	ictx, cancel := ctx, context.CancelFunc(func() {})
	if h.cfg.InvocationTimeout > 0 {
		ictx, cancel = context.WithTimeout(ctx, h.cfg.InvocationTimeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("invocation panicked: %v", r)
			}
		}()
		done <- fn(ictx)
	}()

	select {
	case err = <-done:
		return false, err
	case <-ictx.Done():
		h.buffer.Seal()
		// The invocation may have finished right before the deadline.
		select {
		case err = <-done:
			return false, err
		default:
		}
		h.abandoned = done
		return true, ictx.Err()
	}
}

// awaitAbandoned waits for the invocation left running by the previous
// capture, if any. Its writes meanwhile hit the sealed buffer and are dropped.
func (h *Handler) awaitAbandoned(ctx context.Context) error {
	if h.abandoned == nil {
		return nil
	}

	var timeout <-chan time.Time
	if h.cfg.InvocationTimeout > 0 {
		timer := time.NewTimer(h.cfg.InvocationTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-h.abandoned:
		log.Debugf("Interrupted invocation returned: %v", err)
		h.abandoned = nil
		return nil
	case <-timeout:
		return ErrInvocationRunning
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInvocationRunning, ctx.Err())
	}
}

// reconstruct decodes res.Events and fills in the trace, coverage and outcome.
func (h *Handler) reconstruct(res *Result) error {
	if len(res.Events) == 0 {
		return ErrNoEvents
	}

	instrs, err := h.Decode(res.Events)
	if err != nil {
		return err
	}
	res.Instructions = instrs

	trace, err := calltree.Reconstruct(instrs)
	if err != nil {
		return err
	}
	res.Trace = trace
	res.Outcome = coverage.Classify(trace, instrs)

	var count uint64
	if class, ok := h.registry.ClassID(trace.Root().ClassName); ok {
		count = h.catalog.InstructionCount(class)
	}
	res.Coverage = coverage.Project(instrs, count)
	return nil
}

// Decode resolves events against the registry and the catalog. Unknown
// instruction ids are contract violations.
func (h *Handler) Decode(events []recorder.RawEvent) ([]calltree.Instruction, error) {
	instrs := make([]calltree.Instruction, len(events))
	for i, ev := range events {
		in, err := h.decodeInstruction(ev.Instruction)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		in.Activation = ev.Activation
		instrs[i] = in
	}
	return instrs, nil
}

func (h *Handler) decodeInstruction(id libtrace.InstructionID) (calltree.Instruction, error) {
	if in, ok := h.decodeCache.Get(id); ok {
		h.decodeCacheHit.Add(1)
		return in, nil
	}
	h.decodeCacheMiss.Add(1)

	in, err := decode(h.registry, h.catalog, id)
	if err != nil {
		return calltree.Instruction{}, err
	}
	h.decodeCache.Add(id, in)
	return in, nil
}

// decode resolves id without an activation.
func decode(reg *registry.Registry, cat *catalog.Catalog,
	id libtrace.InstructionID) (calltree.Instruction, error) {
	className, _, err := reg.Decompose(id)
	if err != nil {
		return calltree.Instruction{}, err
	}
	rec, err := cat.Lookup(id)
	if err != nil {
		return calltree.Instruction{}, err
	}
	return calltree.Instruction{
		ClassName: className,
		Method:    rec.Method,
		ID:        id,
		Line:      rec.Line,
		Kind:      rec.Kind,
		Field:     rec.Field,
	}, nil
}

// Replay reconstructs the call tree of a stored capture.
func Replay(d *tracestore.Dump) (*calltree.Trace, error) {
	reg, cat, events, err := d.Restore()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	instrs := make([]calltree.Instruction, len(events))
	for i, ev := range events {
		in, err := decode(reg, cat, ev.Instruction)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		in.Activation = ev.Activation
		instrs[i] = in
	}
	return calltree.Reconstruct(instrs)
}

// storeDump writes res to the trace store and uploads it if a bucket is
// configured. Failures are logged, the capture itself succeeded.
func (h *Handler) storeDump(ctx context.Context, res *Result) {
	d := tracestore.NewDump(h.registry, h.catalog, res.Events)
	d.SessionID = res.SessionID.String()
	d.Capacity = h.buffer.Cap()
	d.Dropped = res.Dropped
	d.Interrupted = res.Interrupted

	id, _, err := h.store.Insert(d)
	if err != nil {
		log.Errorf("Failed to store dump of capture %s: %v", res.SessionID, err)
		return
	}
	res.DumpID = id
	if !h.store.HasRemote() {
		return
	}
	if err = h.store.Upload(ctx, id); err != nil {
		log.Errorf("Failed to upload dump %s: %v", id, err)
	}
}
