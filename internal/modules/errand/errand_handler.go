package errand

import (
	"errors"
	"net/http"
	"strconv"

	"errand-marketplace/internal/models"
	"errand-marketplace/pkg/geo"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for errands.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new errand handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the errand routes on the given group. The group is
// expected to already carry the authentication middleware; role guards are
// applied per route.
func (h *Handler) RegisterRoutes(g *echo.Group, requireCustomer, requireRunner, requireAdmin echo.MiddlewareFunc) {
	g.POST("", h.Create, requireCustomer)
	g.GET("/my-errands", h.ListMyErrands, requireCustomer)
	g.GET("/runner/my-errands", h.ListRunnerErrands, requireRunner)
	g.GET("/available", h.ListAvailable, requireRunner)
	g.PATCH("/runner/location", h.UpdateRunnerLocation, requireRunner)
	g.GET("", h.ListAll, requireAdmin)

	g.GET("/:id", h.Get)
	g.POST("/:id/accept", h.Accept, requireRunner)
	g.PATCH("/:id/status", h.UpdateStatus)
	g.POST("/:id/pay", h.Pay, requireCustomer)
	g.POST("/:id/rate", h.Rate, requireCustomer)
}

func (h *Handler) Create(c echo.Context) error {
	userID := c.Get("userID").(string)

	var req models.CreateErrandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Validation failed: "+err.Error()))
	}

	e, err := h.svc.Create(c.Request().Context(), userID, req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid errand type or locations"))
		}
		c.Logger().Error("Handler.Create: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to create errand"))
	}

	return c.JSON(http.StatusCreated, models.SuccessResponse(map[string]any{"errand": e}))
}

func (h *Handler) ListMyErrands(c echo.Context) error {
	userID := c.Get("userID").(string)

	errands, err := h.svc.ListForCustomer(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Error("Handler.ListMyErrands: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to retrieve errands"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errands": errands}))
}

func (h *Handler) ListRunnerErrands(c echo.Context) error {
	userID := c.Get("userID").(string)

	errands, err := h.svc.ListForRunner(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Error("Handler.ListRunnerErrands: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to retrieve errands"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errands": errands}))
}

// ListAvailable returns pending errands near the runner's reported position.
// Position comes from longitude/latitude query parameters; radius (km) is
// optional and defaults to the runner search radius.
func (h *Handler) ListAvailable(c echo.Context) error {
	lon, err1 := strconv.ParseFloat(c.QueryParam("longitude"), 64)
	lat, err2 := strconv.ParseFloat(c.QueryParam("latitude"), 64)
	if err1 != nil || err2 != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("longitude and latitude query parameters are required"))
	}
	radius := 0.0
	if v := c.QueryParam("radius"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
			radius = r
		}
	}

	errands, err := h.svc.ListAvailable(c.Request().Context(), geo.Point{lon, lat}, radius)
	if err != nil {
		c.Logger().Error("Handler.ListAvailable: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to retrieve available errands"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errands": errands}))
}

func (h *Handler) UpdateRunnerLocation(c echo.Context) error {
	userID := c.Get("userID").(string)

	var req models.RunnerLocationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Validation failed: "+err.Error()))
	}

	if err := h.svc.UpdateRunnerLocation(c.Request().Context(), userID, geo.Point{req.Longitude, req.Latitude}); err != nil {
		c.Logger().Error("Handler.UpdateRunnerLocation: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to update location"))
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListAll(c echo.Context) error {
	page := 1
	limit := 50
	if v := c.QueryParam("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	errands, total, err := h.svc.ListAll(c.Request().Context(), page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListAll: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to list errands"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errands": errands, "total": total}))
}

func (h *Handler) Get(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	e, err := h.svc.Get(c.Request().Context(), c.Param("id"), userID, role)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse("Errand not found"))
		}
		if errors.Is(err, models.ErrForbidden) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse("You do not have permission to view this errand"))
		}
		c.Logger().Error("Handler.Get: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to retrieve errand"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errand": e}))
}

func (h *Handler) Accept(c echo.Context) error {
	userID := c.Get("userID").(string)

	e, err := h.svc.Accept(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse("Errand not found"))
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, models.ErrorResponse("This errand is no longer available"))
		}
		if errors.Is(err, models.ErrRunnerNotApproved) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse("Your runner account is not yet approved"))
		}
		c.Logger().Error("Handler.Accept: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to accept errand"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errand": e}))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	userID := c.Get("userID").(string)
	role := c.Get("userRole").(string)

	var req models.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Validation failed: "+err.Error()))
	}

	e, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), userID, role, req)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse("Errand not found"))
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid status transition"))
		}
		if errors.Is(err, models.ErrReasonRequired) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse("A cancellation reason is required"))
		}
		if errors.Is(err, models.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request"))
		}
		if errors.Is(err, models.ErrForbidden) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse("You cannot change this errand's status"))
		}
		c.Logger().Error("Handler.UpdateStatus: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to update status"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errand": e}))
}

func (h *Handler) Pay(c echo.Context) error {
	userID := c.Get("userID").(string)

	var req models.PayErrandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Validation failed: "+err.Error()))
	}

	e, err := h.svc.Pay(c.Request().Context(), c.Param("id"), userID, req)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse("Errand not found"))
		}
		if errors.Is(err, models.ErrForbidden) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse("You cannot pay for this errand"))
		}
		if errors.Is(err, models.ErrNotPayable) {
			return c.JSON(http.StatusConflict, models.ErrorResponse("Errand cannot be paid in its current state"))
		}
		c.Logger().Error("Handler.Pay: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to process payment"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errand": e}))
}

func (h *Handler) Rate(c echo.Context) error {
	userID := c.Get("userID").(string)

	var req models.RateErrandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Validation failed: "+err.Error()))
	}

	e, err := h.svc.Rate(c.Request().Context(), c.Param("id"), userID, req)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse("Errand not found"))
		}
		if errors.Is(err, models.ErrForbidden) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse("You cannot rate this errand"))
		}
		if errors.Is(err, models.ErrNotRatable) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse("Can only rate completed errands"))
		}
		if errors.Is(err, models.ErrAlreadyRated) {
			return c.JSON(http.StatusConflict, models.ErrorResponse("Errand already rated"))
		}
		c.Logger().Error("Handler.Rate: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to rate errand"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(map[string]any{"errand": e}))
}
