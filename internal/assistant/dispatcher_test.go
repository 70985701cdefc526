package assistant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/famulus-ai/famulus/internal/models"
)

// A slow first turn must not let later turns of the same conversation
// overtake it.
func TestDispatcherPreservesOrderWithinConversation(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	d := NewDispatcher(func(ctx context.Context, msg *models.InboundMessage) {
		if msg.ID == "m1" {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		got = append(got, msg.ID)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	ctx := context.Background()
	d.Enqueue(ctx, &models.InboundMessage{ID: "m1", ConversationID: "c1"})
	d.Enqueue(ctx, &models.InboundMessage{ID: "m2", ConversationID: "c1"})
	d.Enqueue(ctx, &models.InboundMessage{ID: "m3", ConversationID: "c1"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not all handled")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1", "m2", "m3"}, got)
}

func TestDispatcherConversationsProceedIndependently(t *testing.T) {
	release := make(chan struct{})
	free := make(chan struct{})

	d := NewDispatcher(func(ctx context.Context, msg *models.InboundMessage) {
		switch msg.ConversationID {
		case "blocked":
			<-release
		case "free":
			close(free)
		}
	})

	ctx := context.Background()
	d.Enqueue(ctx, &models.InboundMessage{ID: "b1", ConversationID: "blocked"})
	d.Enqueue(ctx, &models.InboundMessage{ID: "f1", ConversationID: "free"})

	select {
	case <-free:
	case <-time.After(time.Second):
		t.Fatal("second conversation waited on the first")
	}
	close(release)
}

func TestDispatcherDrainsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(func(context.Context, *models.InboundMessage) {})

	d.Enqueue(ctx, &models.InboundMessage{ID: "m1", ConversationID: "c1"})
	cancel()

	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher goroutines did not exit")
	}
}
