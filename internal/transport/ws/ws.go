// Package ws bridges the eventbus to browser clients: each websocket
// connection is its own KindAsyncTask consumer, not a fan-out broadcast
// list. That mirrors how any other AsyncTask caller works — a connection
// owns a queue and a wake token, and drains at its own pace instead of
// blocking the publisher.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connQueueCapacity bounds how many undelivered envelopes a slow browser
// client may accumulate before further deliveries to it start failing
// (the spec's per-subscription "allocation failure" outcome) rather than
// growing without bound.
const connQueueCapacity = 256

// Hub upgrades HTTP connections to websockets and subscribes each one to
// the given event families on the bus's global sublist.
type Hub struct {
	bus      *eventbus.Bus
	families []eventbus.Family
}

// NewHub builds a Hub that forwards every event whose family is in
// families to each connected client.
func NewHub(bus *eventbus.Bus, families ...eventbus.Family) *Hub {
	return &Hub{bus: bus, families: families}
}

// Register mounts the websocket upgrade endpoint on rg.
func (h *Hub) Register(rg *gin.RouterGroup) {
	rg.GET("", h.handleWS)
}

// wireMessage is the JSON envelope shape written to each client.
type wireMessage struct {
	Family  eventbus.Family  `json:"family"`
	Subtype eventbus.Subtype `json:"subtype"`
	Name    string           `json:"name"`
	Payload any              `json:"payload,omitempty"`
}

// wakeChan adapts a channel into an eventbus.WakeToken.
type wakeChan chan struct{}

func (w wakeChan) wake() {
	select {
	case w <- struct{}{}:
	default:
	}
}

func (w wakeChan) Wake() { w.wake() }

func (h *Hub) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	queue := eventbus.NewAsyncQueue(connQueueCapacity)
	wake := make(wakeChan, 1)

	refs := make([]*eventbus.SubRef, 0, len(h.families))
	for _, fam := range h.families {
		ref, err := h.bus.SubscribePtr(nil, eventbus.NewType(fam, 0), eventbus.AsyncTask(queue, wake, nil, nil))
		if err != nil {
			slog.Error("websocket subscribe failed", "family", fam, "error", err)
			continue
		}
		refs = append(refs, ref)
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go writePump(conn, queue, wake, done, stopped)

	// Block until the client disconnects. Incoming client messages are
	// not part of this protocol; ReadMessage is only how gorilla surfaces
	// a close frame or a broken connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	<-stopped // writePump owns Pop until it has fully exited; only then is it safe for this goroutine to call Pop too
	for _, ref := range refs {
		ref.Unsubscribe()
	}
	// Drain whatever writePump didn't get to (including the SubEnd
	// envelopes Unsubscribe just enqueued) so every envelope's Free runs
	// and the subscriptions' storage can be released.
	for {
		env, ok := queue.Pop()
		if !ok {
			break
		}
		env.Free()
	}
	for _, ref := range refs {
		ref.Drop()
	}
}

func writePump(conn *websocket.Conn, queue *eventbus.AsyncQueue, wake wakeChan, done, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case <-done:
			return
		case <-wake:
		}
		for {
			env, ok := queue.Pop()
			if !ok {
				break
			}
			if !env.IsSubEnd() {
				msg := wireMessage{
					Family:  env.Type.Family,
					Subtype: env.Type.Subtype,
					Name:    eventbus.String(env.Type),
					Payload: env.Safe,
				}
				data, err := json.Marshal(msg)
				if err != nil {
					slog.Error("websocket marshal failed", "error", err)
				} else if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					slog.Error("websocket write failed", "error", err)
				}
			}
			env.Free()
		}
	}
}
