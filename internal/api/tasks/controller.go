package tasks

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/telegrab/telegrab/internal/gallery"
	"github.com/telegrab/telegrab/internal/graceful"
	"github.com/telegrab/telegrab/internal/queue"
	"github.com/telegrab/telegrab/pkg/logger"
)

var controllerLogger = logger.Get("TasksController")

type (
	EnqueueRequest struct {
		DocID int32 `json:"docId" validate:"required,gt=0"`
	}

	ActiveResponse struct {
		Count   int                    `json:"count"`
		Workers int                    `json:"workers"`
		Tasks   []queue.ActiveTaskInfo `json:"tasks"`
	}

	QueuedResponse struct {
		QueueSize int                      `json:"queueSize"`
		Stats     map[queue.TaskStatus]int `json:"stats"`
		Tasks     []queue.Task             `json:"tasks"`
	}

	CleanupResponse struct {
		Removed int `json:"removed"`
	}

	ClearResponse struct {
		Cleared int `json:"cleared"`
	}

	// DocStore is the slice of repository behaviour this controller
	// needs to translate a doc id into the right task kind.
	DocStore interface {
		GetDoc(id int32) (*gallery.Doc, error)
	}

	Controller struct {
		validate    *validator.Validate
		queue       *queue.QueueState
		shutdown    *graceful.ShutdownCoordinator
		store       DocStore
		workerCount int
		keepRecent  int
	}
)

func New(validate *validator.Validate, state *queue.QueueState, shutdown *graceful.ShutdownCoordinator, store DocStore, workerCount int, keepRecent int) *Controller {
	return &Controller{validate: validate, queue: state, shutdown: shutdown, store: store, workerCount: workerCount, keepRecent: keepRecent}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/active/", controller.active)
	eg.GET("/queued/", controller.queued)
	eg.POST("/enqueue/", controller.enqueue)
	eg.POST("/cleanup/", controller.cleanup)
	eg.POST("/clear/", controller.clear)
	eg.GET("/parse-all/", controller.parseAll)
	eg.GET("/scan/", controller.scan)
}

func (controller *Controller) active(ec echo.Context) error {
	tasks := controller.queue.GetActive()
	return ec.JSON(http.StatusOK, ActiveResponse{
		Count:   len(tasks),
		Workers: controller.workerCount,
		Tasks:   tasks,
	})
}

func (controller *Controller) queued(ec echo.Context) error {
	tasks := controller.queue.GetTasks()
	stats := make(map[queue.TaskStatus]int)
	for _, task := range tasks {
		stats[task.Status]++
	}

	return ec.JSON(http.StatusOK, QueuedResponse{
		QueueSize: controller.queue.Size(),
		Stats:     stats,
		Tasks:     tasks,
	})
}

// enqueue creates the task matching the doc's current lifecycle stage:
// an unparsed doc gets an HtmlParse, a parsed one a PicDownload, and a
// downloaded or archived one a CbzArchive. If an equivalent task is
// already live the existing task is returned instead of a new one.
func (controller *Controller) enqueue(ec echo.Context) error {
	if controller.shutdown.IsShuttingDown() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down")
	}

	var request EnqueueRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc, err := controller.store.GetDoc(request.DocID)
	if err != nil {
		if errors.Is(err, gallery.ErrDocNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("doc %d does not exist", request.DocID))
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var task queue.Task
	switch doc.Status {
	case gallery.DocUnparsed:
		if existing, ok := controller.queue.FindDocInQueue(doc.ID); ok {
			return ec.JSON(http.StatusOK, existing)
		}
		task = queue.NewHtmlParseTask(doc.ID)
	case gallery.DocParsed:
		if existing, ok := controller.queue.FindPicInQueue(doc.ID); ok {
			return ec.JSON(http.StatusOK, existing)
		}
		task = queue.NewPicDownloadTask(doc.ID)
	case gallery.DocDownloaded, gallery.DocArchived:
		if existing, ok := controller.queue.FindDocInQueue(doc.ID); ok {
			return ec.JSON(http.StatusOK, existing)
		}
		task = queue.NewCbzArchiveTask(doc.ID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("doc %d has unknown status %d", doc.ID, doc.Status))
	}

	controller.queue.Enqueue(task)
	controllerLogger.Infof("Enqueued %s task %s for doc %d\n", task.Kind, task.ID, doc.ID)
	return ec.JSON(http.StatusCreated, task)
}

func (controller *Controller) cleanup(ec echo.Context) error {
	removed := controller.queue.Cleanup(controller.keepRecent)
	return ec.JSON(http.StatusOK, CleanupResponse{Removed: removed})
}

func (controller *Controller) clear(ec echo.Context) error {
	cleared := controller.queue.Clear()
	return ec.JSON(http.StatusOK, ClearResponse{Cleared: len(cleared)})
}

func (controller *Controller) parseAll(ec echo.Context) error {
	return controller.enqueueSingleton(ec, queue.NewHtmlParseAllTask())
}

func (controller *Controller) scan(ec echo.Context) error {
	return controller.enqueueSingleton(ec, queue.NewScanDirTask())
}

// enqueueSingleton guards the long-running "all" kinds: only one task
// of the kind may be live at a time.
func (controller *Controller) enqueueSingleton(ec echo.Context, task queue.Task) error {
	if controller.shutdown.IsShuttingDown() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down")
	}

	if controller.queue.HasLiveTask(task.Kind) {
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("a %s task is already pending or active", task.Kind))
	}

	controller.queue.Enqueue(task)
	return ec.JSON(http.StatusCreated, task)
}
