package docs

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/telegrab/telegrab/internal/gallery"
)

type (
	CreateRequest struct {
		URL string `json:"url" validate:"required,url"`
	}

	ListResponse struct {
		Data  []*gallery.Doc `json:"data"`
		Total int64          `json:"total"`
	}

	PicsResponse struct {
		Data []*gallery.Pic `json:"data"`
	}

	Store interface {
		CreateDoc(url string) (*gallery.Doc, error)
		GetDoc(id int32) (*gallery.Doc, error)
		ListDocs(params gallery.ListParams) ([]*gallery.Doc, int64, error)
		DeleteDoc(id int32) error
		GetPicsByDocID(docID int32) ([]*gallery.Pic, error)
	}

	Controller struct {
		validate *validator.Validate
		store    Store
	}
)

func New(validate *validator.Validate, store Store) *Controller {
	return &Controller{validate: validate, store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/", controller.create)
	eg.GET("/:id/", controller.get)
	eg.DELETE("/:id/", controller.delete)
	eg.GET("/:id/pics/", controller.pics)
}

func (controller *Controller) list(ec echo.Context) error {
	docs, total, err := controller.store.ListDocs(ListParamsFromContext(ec))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, ListResponse{Data: docs, Total: total})
}

func (controller *Controller) create(ec echo.Context) error {
	var request CreateRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc, err := controller.store.CreateDoc(request.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ec.JSON(http.StatusCreated, doc)
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := ParseID(ec)
	if err != nil {
		return err
	}

	doc, err := controller.store.GetDoc(id)
	if err != nil {
		if errors.Is(err, gallery.ErrDocNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, doc)
}

func (controller *Controller) delete(ec echo.Context) error {
	id, err := ParseID(ec)
	if err != nil {
		return err
	}

	if err := controller.store.DeleteDoc(id); err != nil {
		if errors.Is(err, gallery.ErrDocNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) pics(ec echo.Context) error {
	id, err := ParseID(ec)
	if err != nil {
		return err
	}

	pics, err := controller.store.GetPicsByDocID(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, PicsResponse{Data: pics})
}

// ParseID extracts the numeric 'id' path param.
func ParseID(ec echo.Context) (int32, error) {
	id, err := strconv.ParseInt(ec.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "ID must be an integer")
	}

	return int32(id), nil
}

// ListParamsFromContext reads the shared pagination query params
// (limit, offset, sort, order).
func ListParamsFromContext(ec echo.Context) gallery.ListParams {
	limit, _ := strconv.Atoi(ec.QueryParam("limit"))
	offset, _ := strconv.Atoi(ec.QueryParam("offset"))

	return gallery.ListParams{
		Limit:  limit,
		Offset: offset,
		Sort:   ec.QueryParam("sort"),
		Order:  ec.QueryParam("order"),
	}
}
