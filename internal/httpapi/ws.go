package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/imaging"
	"github.com/wyyywsd/FinderEye/internal/pacer"
	"github.com/wyyywsd/FinderEye/internal/pipeline"
)

const wsWriteTimeout = 5 * time.Second

// ControlMessage is a text message from a stream client.
//
//	{"type":"query","keyword":"cup","mode":"object"}
//	{"type":"suspend","suspended":true,"reason":"zooming"}
//	{"type":"orientation","orientation":6}
//	{"type":"reset"}
type ControlMessage struct {
	Type        string `json:"type"`
	Keyword     string `json:"keyword,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Suspended   bool   `json:"suspended,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Orientation int    `json:"orientation,omitempty"`
}

// StreamMessage is pushed to the client: a result for each processed frame,
// or an error for a bad message.
type StreamMessage struct {
	Type   string                 `json:"type"`
	Result *pipeline.StreamResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// streamConn is one websocket client. Binary messages are encoded frames;
// the current query applies to every frame until changed.
type streamConn struct {
	api  *API
	conn *websocket.Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	query       pipeline.Query
	orientation imaging.Orientation
}

func (a *API) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(MaxFrameBytes)

	q, o, err := queryFromRequest(r)
	if err != nil {
		q = pipeline.Query{}
	}
	sc := &streamConn{
		api:         a,
		conn:        conn,
		log:         a.log.With().Str("request_id", RequestID(r.Context())).Logger(),
		query:       q,
		orientation: o,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc.log.Info().Msg("stream client connected")
	sc.run(ctx)
	sc.log.Info().Msg("stream client disconnected")
}

func (sc *streamConn) run(ctx context.Context) {
	for {
		typ, data, err := sc.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sc.log.Debug().Err(err).Msg("stream read ended")
			}
			return
		}

		switch typ {
		case websocket.BinaryMessage:
			sc.handleFrame(ctx, data)
		case websocket.TextMessage:
			sc.handleControl(data)
		}
	}
}

func (sc *streamConn) handleFrame(ctx context.Context, data []byte) {
	frame, err := pipeline.FrameFromEncoded(data, sc.orientation)
	if err != nil {
		sc.send(StreamMessage{Type: "error", Error: err.Error()})
		return
	}
	dec := sc.api.pipeline.OfferStreamFrame(ctx, frame, sc.query, func(res pipeline.StreamResult) {
		if res.Detections == nil {
			res.Detections = []detection.Detection{}
		}
		sc.send(StreamMessage{Type: "result", Result: &res})
	})
	if dec != pacer.Admit {
		sc.log.Trace().Stringer("decision", dec).Msg("frame skipped")
	}
}

func (sc *streamConn) handleControl(data []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sc.send(StreamMessage{Type: "error", Error: fmt.Sprintf("bad control message: %v", err)})
		return
	}

	switch msg.Type {
	case "query":
		kind, err := detection.ParseKind(msg.Mode)
		if err != nil {
			sc.send(StreamMessage{Type: "error", Error: err.Error()})
			return
		}
		sc.query = pipeline.Query{Keyword: msg.Keyword, Kind: kind}
	case "suspend":
		if err := sc.api.applySuspend(SuspendRequest{Suspended: msg.Suspended, Reason: msg.Reason}); err != nil {
			sc.send(StreamMessage{Type: "error", Error: err.Error()})
		}
	case "orientation":
		o := imaging.Orientation(msg.Orientation)
		if o != imaging.OrientationUnspecified && !o.Valid() {
			sc.send(StreamMessage{Type: "error", Error: "orientation must be an EXIF value from 1 to 8"})
			return
		}
		sc.orientation = o
	case "reset":
		sc.api.pipeline.ResetStream()
	default:
		sc.send(StreamMessage{Type: "error", Error: fmt.Sprintf("unknown control message type %q", msg.Type)})
	}
}

// send serializes writes; results arrive from pipeline goroutines.
func (sc *streamConn) send(msg StreamMessage) {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	sc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := sc.conn.WriteJSON(msg); err != nil {
		sc.log.Debug().Err(err).Msg("stream write failed")
	}
}
