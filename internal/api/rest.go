package api

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/telegrab/telegrab/internal/api/cbzs"
	"github.com/telegrab/telegrab/internal/api/docs"
	"github.com/telegrab/telegrab/internal/api/events"
	"github.com/telegrab/telegrab/internal/api/tasks"
	"github.com/telegrab/telegrab/internal/gallery"
	"github.com/telegrab/telegrab/internal/graceful"
	"github.com/telegrab/telegrab/internal/queue"
	"github.com/telegrab/telegrab/pkg/logger"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// dataStore is the union of the controllers' store requirements,
	// satisfied by gallery.Repository.
	dataStore interface {
		tasks.DocStore
		docs.Store
		cbzs.Store
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router.
	// Its sole responsibility is to create the routes the server
	// exposes and hand each request off to the matching controller.
	RestGateway struct {
		config           *RestConfig
		ec               *echo.Echo
		tasksController  controller
		docsController   controller
		cbzsController   controller
		eventsController controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all
// the routes defined by the various controllers.
func NewRestGateway(
	config *RestConfig,
	state *queue.QueueState,
	shutdown *graceful.ShutdownCoordinator,
	repo *gallery.Repository,
	workerCount int,
	keepRecent int,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	var store dataStore = repo
	gateway := &RestGateway{
		config:           config,
		ec:               ec,
		tasksController:  tasks.New(validate, state, shutdown, store, workerCount, keepRecent),
		docsController:   docs.New(validate, store),
		cbzsController:   cbzs.New(store, state, shutdown),
		eventsController: events.New(state.Events(), shutdown),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	gateway.tasksController.SetRoutes(ec.Group("/api/tasks"))
	gateway.docsController.SetRoutes(ec.Group("/api/docs"))
	gateway.cbzsController.SetRoutes(ec.Group("/api/cbz"))
	gateway.eventsController.SetRoutes(ec.Group("/api/events"))

	return gateway
}

// Run serves the gateway until the context is cancelled.
func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent
	// context cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
