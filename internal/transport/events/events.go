// Package events is the HTTP handler surface over the eventbus: publish
// an event and introspect the global sublist. It follows the same
// Register(group, service)-per-resource shape the teacher uses for every
// other resource handler.
package events

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

// Register mounts the event-bus HTTP surface on rg.
func Register(rg *gin.RouterGroup, bus *eventbus.Bus) {
	h := &handler{bus: bus}
	rg.POST("", h.publish)
	rg.GET("/subscriptions", h.listSubscriptions)
}

type handler struct {
	bus *eventbus.Bus
}

type publishRequest struct {
	Family  eventbus.Family  `json:"family" binding:"required"`
	Subtype eventbus.Subtype `json:"subtype" binding:"required"`
	Payload any              `json:"payload"`
}

type publishResponse struct {
	Delivered bool `json:"delivered"`
}

func (h *handler) publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evt := eventbus.NewType(req.Family, req.Subtype)
	ok := h.bus.Publish(nil, evt, req.Payload)
	c.JSON(http.StatusOK, publishResponse{Delivered: ok})
}

type subscriptionView struct {
	Handle  uint64           `json:"handle"`
	ID      uint64           `json:"id,omitempty"`
	Family  eventbus.Family  `json:"family"`
	Subtype eventbus.Subtype `json:"subtype"`
}

func (h *handler) listSubscriptions(c *gin.Context) {
	subs := h.bus.Global().Snapshot()
	out := make([]subscriptionView, 0, len(subs))
	for _, s := range subs {
		filter := s.GetFilter()
		out = append(out, subscriptionView{
			Handle:  s.Handle(),
			ID:      s.ID(),
			Family:  filter.Family,
			Subtype: filter.Subtype,
		})
	}
	c.JSON(http.StatusOK, out)
}
