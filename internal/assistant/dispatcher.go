package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/famulus-ai/famulus/internal/models"
)

const (
	queueDepth  = 16
	idleTimeout = 5 * time.Minute
)

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg *models.InboundMessage)

// Dispatcher delivers messages to the handler strictly in arrival order
// within a conversation, while distinct conversations proceed
// concurrently. Each active conversation owns one queue goroutine;
// queues with no traffic for idleTimeout are reaped.
type Dispatcher struct {
	handle Handler

	mu     sync.Mutex
	queues map[string]chan *models.InboundMessage
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher delivering to handle.
func NewDispatcher(handle Handler) *Dispatcher {
	return &Dispatcher{
		handle: handle,
		queues: make(map[string]chan *models.InboundMessage),
	}
}

// Enqueue hands a message to its conversation's queue, creating the
// queue on first use. Callers must enqueue from a single goroutine per
// arrival stream; the queue preserves that order. Blocks only when the
// conversation's queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, msg *models.InboundMessage) {
	if ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	q, ok := d.queues[msg.ConversationID]
	if !ok {
		q = make(chan *models.InboundMessage, queueDepth)
		d.queues[msg.ConversationID] = q
		d.wg.Add(1)
		go d.drain(ctx, msg.ConversationID, q)
	}
	select {
	case q <- msg:
		d.mu.Unlock()
		return
	default:
	}
	// Queue full. The drain goroutine only reaps an empty queue under
	// this same lock, so it stays alive and a blocking send is safe.
	d.mu.Unlock()
	select {
	case q <- msg:
	case <-ctx.Done():
	}
}

// Wait blocks until every queue goroutine has exited.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) drain(ctx context.Context, conversationID string, q chan *models.InboundMessage) {
	defer d.wg.Done()
	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		select {
		case msg := <-q:
			d.handle(ctx, msg)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(idleTimeout)
		case <-idle.C:
			d.mu.Lock()
			if len(q) == 0 {
				delete(d.queues, conversationID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(idleTimeout)
		case <-ctx.Done():
			d.mu.Lock()
			delete(d.queues, conversationID)
			d.mu.Unlock()
			return
		}
	}
}
