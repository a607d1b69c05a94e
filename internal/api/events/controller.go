package events

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/telegrab/telegrab/internal/graceful"
	"github.com/telegrab/telegrab/internal/queue"
	"github.com/telegrab/telegrab/pkg/logger"
)

var socketLogger = logger.Get("EventSocket")

const writeTimeout = time.Second * 10

// Controller upgrades clients to a websocket and streams every queue
// event to them as JSON until they disconnect or shutdown begins. Each
// client gets its own bus subscription, so one slow client can only
// lose its own events.
type Controller struct {
	bus      *queue.EventBus
	shutdown *graceful.ShutdownCoordinator
	upgrader *websocket.Upgrader
}

func New(bus *queue.EventBus, shutdown *graceful.ShutdownCoordinator) *Controller {
	return &Controller{
		bus:      bus,
		shutdown: shutdown,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/ws/", controller.stream)
}

func (controller *Controller) stream(ec echo.Context) error {
	conn, err := controller.upgrader.Upgrade(ec.Response(), ec.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events, cancel := controller.bus.Subscribe()
	defer cancel()

	socketLogger.Emit(logger.NEW, "Event stream client connected from %s\n", conn.RemoteAddr())

	// Reader goroutine: we never expect inbound messages, but reading
	// is required to notice the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	shutdownSignal := controller.shutdown.SubscribeShutdown()
	for {
		select {
		case <-clientGone:
			socketLogger.Emit(logger.REMOVE, "Event stream client %s disconnected\n", conn.RemoteAddr())
			return nil
		case <-shutdownSignal:
			deadline := time.Now().Add(writeTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
			return nil
		case event := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				socketLogger.Warnf("Dropping event stream client %s: %s\n", conn.RemoteAddr(), err.Error())
				return nil
			}
		}
	}
}
