package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/docflow/ingest-console/internal/core/stream"
)

const watchWriteTimeout = 10 * time.Second

// watchCommand is a client message on a watch socket.
type watchCommand struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

type watchReply struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// commandFunc handles one client command. A returned error is sent back to
// the client; the socket stays open.
type commandFunc func(ctx context.Context, cmd watchCommand) error

// serveWatch upgrades the request and pushes every value of view until the
// client goes away. Only the newest value is kept while the client is slow.
// A nil onCommand makes the socket write-only.
func serveWatch[T any](c echo.Context, log zerolog.Logger, view stream.Stream[T], onCommand commandFunc) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	ctx := c.Request().Context()
	if onCommand == nil {
		ctx = conn.CloseRead(ctx)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	latest := make(chan T, 1)
	stop := view.Observe(func(v T) {
		select {
		case <-latest:
		default:
		}
		latest <- v
	})
	defer stop()

	replies := make(chan watchReply, 8)
	if onCommand != nil {
		go readCommands(ctx, cancel, conn, log, onCommand, replies)
	}

	for {
		var msg any
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case v := <-latest:
			msg = v
		case r := <-replies:
			msg = r
		}
		if err := writeJSON(ctx, conn, msg); err != nil {
			log.Debug().Err(err).Msg("watch client gone")
			return nil
		}
	}
}

func readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, log zerolog.Logger, onCommand commandFunc, replies chan<- watchReply) {
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd watchCommand
		if typ != websocket.MessageText || json.Unmarshal(data, &cmd) != nil {
			select {
			case replies <- watchReply{Error: "malformed command"}:
				continue
			case <-ctx.Done():
				return
			}
		}
		reply := watchReply{Action: cmd.Action, ID: cmd.ID}
		if err := onCommand(ctx, cmd); err != nil {
			log.Info().Err(err).Str("action", cmd.Action).Msg("watch command failed")
			reply.Error = err.Error()
		}
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, watchWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
