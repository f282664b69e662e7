package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// watchesEvent is sent whenever the set of watches changes.
type watchesEvent struct {
	Count  int    `json:"count"`
	Active int    `json:"active"`
	IDs    []uint `json:"ids"`
}

// handleSSE streams a "watches" event on connect and on every change.
func handleSSE(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		last := ""
		push := func() {
			evt, err := snapshot(opts)
			if err != nil {
				writeSSE(c.Writer, "error", map[string]string{"error": err.Error()})
				c.Writer.Flush()
				return
			}
			sig := fmt.Sprint(evt.Active, evt.IDs)
			if sig == last {
				return
			}
			last = sig
			writeSSE(c.Writer, "watches", evt)
			c.Writer.Flush()
		}
		push()

		ctx := c.Request.Context()
		ticker := time.NewTicker(opts.EventInterval)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				push()
			}
		}
	}
}

func snapshot(opts StartOpts) (watchesEvent, error) {
	watches, err := opts.Store.Watches()
	if err != nil {
		return watchesEvent{}, err
	}
	evt := watchesEvent{Count: len(watches), IDs: make([]uint, len(watches))}
	for i, w := range watches {
		evt.IDs[i] = w.ID
	}
	if opts.Active != nil {
		evt.Active = opts.Active()
	}
	return evt, nil
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
