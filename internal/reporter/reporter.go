// Package reporter owns the persistent channel to the proctoring
// collaborator. It multiplexes capture samples and monitor events onto one
// outbound WebSocket and surfaces server pushes to the escalation handler.
package reporter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/model"
	"github.com/proctorly/examroom/internal/protocol"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 5 * time.Minute
)

// Reporter forwards violation samples unmodified over the proctoring
// channel. It is stateless with respect to samples: no buffering, no retry.
// While the channel is down, samples are dropped (bounded staleness over
// unbounded buffering).
type Reporter struct {
	log       zerolog.Logger
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	dropped   atomic.Int64
}

// Dial connects the proctoring channel. wsURL carries the session token as
// a query parameter.
func Dial(ctx context.Context, log zerolog.Logger, wsURL string) (*Reporter, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial proctor channel: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	r := &Reporter{
		log:  log.With().Str("component", "reporter").Logger(),
		conn: conn,
	}
	r.connected.Store(true)
	return r, nil
}

// Report forwards one sample. If the channel is not connected the sample is
// silently dropped.
func (r *Reporter) Report(sample model.ViolationSample) {
	if !r.connected.Load() {
		n := r.dropped.Add(1)
		r.log.Debug().Int64("dropped", n).Msg("Channel down, sample dropped")
		return
	}
	if err := r.write(protocol.NewSampleRequest(sample)); err != nil {
		r.connected.Store(false)
		r.dropped.Add(1)
		r.log.Warn().Err(err).Msg("Sample write failed, channel marked down")
	}
}

// SessionEnded notifies the collaborator that the session finished
// normally. Sent once after a confirmed submission.
func (r *Reporter) SessionEnded() error {
	if !r.connected.Load() {
		return fmt.Errorf("proctor channel not connected")
	}
	return r.write(protocol.SessionEndedRequest{Action: protocol.ActionSessionEnded})
}

// Listen starts the inbound read loop, invoking onEvent for every server
// push until the channel closes.
func (r *Reporter) Listen(onEvent func(protocol.EventEnvelope)) {
	go func() {
		for {
			r.conn.SetReadDeadline(time.Now().Add(readTimeout))
			var event protocol.EventEnvelope
			if err := r.conn.ReadJSON(&event); err != nil {
				r.connected.Store(false)
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					r.log.Warn().Err(err).Msg("Unexpected channel close")
				} else {
					r.log.Debug().Msg("Channel closed")
				}
				return
			}
			onEvent(event)
		}
	}()
}

// Connected reports whether the channel is currently usable.
func (r *Reporter) Connected() bool { return r.connected.Load() }

// Dropped returns the number of samples discarded while the channel was
// down.
func (r *Reporter) Dropped() int64 { return r.dropped.Load() }

// Close tears down the channel.
func (r *Reporter) Close() error {
	r.connected.Store(false)
	return r.conn.Close()
}

func (r *Reporter) write(v interface{}) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return r.conn.WriteJSON(v)
}
