package cbzs

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/telegrab/telegrab/internal/api/docs"
	"github.com/telegrab/telegrab/internal/gallery"
	"github.com/telegrab/telegrab/internal/graceful"
	"github.com/telegrab/telegrab/internal/queue"
)

type (
	ListResponse struct {
		Data  []*gallery.Cbz `json:"data"`
		Total int64          `json:"total"`
	}

	Store interface {
		GetCbzById(id int32) (*gallery.Cbz, error)
		ListCbz(params gallery.ListParams) ([]*gallery.Cbz, int64, error)
	}

	Controller struct {
		store    Store
		queue    *queue.QueueState
		shutdown *graceful.ShutdownCoordinator
	}
)

func New(store Store, state *queue.QueueState, shutdown *graceful.ShutdownCoordinator) *Controller {
	return &Controller{store: store, queue: state, shutdown: shutdown}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.GET("/:id/", controller.get)
	eg.DELETE("/:id/", controller.delete)
}

func (controller *Controller) list(ec echo.Context) error {
	rows, total, err := controller.store.ListCbz(docs.ListParamsFromContext(ec))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, ListResponse{Data: rows, Total: total})
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := docs.ParseID(ec)
	if err != nil {
		return err
	}

	cbz, err := controller.store.GetCbzById(id)
	if err != nil {
		if errors.Is(err, gallery.ErrCbzNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, cbz)
}

// delete does not touch the row directly: removal (disk file plus row)
// happens through a RemoveCbz task so it shows up in the task history
// and event stream like any other mutation.
func (controller *Controller) delete(ec echo.Context) error {
	if controller.shutdown.IsShuttingDown() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down")
	}

	id, err := docs.ParseID(ec)
	if err != nil {
		return err
	}

	if _, err := controller.store.GetCbzById(id); err != nil {
		if errors.Is(err, gallery.ErrCbzNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	task := queue.NewRemoveCbzTask(id)
	controller.queue.Enqueue(task)
	return ec.JSON(http.StatusAccepted, task)
}
