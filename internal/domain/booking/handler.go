package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/bookings", h.Create, auth.RequireRole(auth.RoleClient))
	api.GET("/bookings", h.List)
	api.GET("/bookings/:id", h.Get)

	provider := auth.RequireRole(auth.RoleProvider)
	api.POST("/bookings/:id/confirm", h.Confirm, provider)
	api.POST("/bookings/:id/reject", h.Reject, provider)
	api.POST("/bookings/:id/complete", h.Complete, provider)

	// Either party may cancel or report a no-show.
	api.POST("/bookings/:id/cancel", h.Cancel)
	api.POST("/bookings/:id/no-show", h.MarkNoShow)
	api.POST("/bookings/:id/pay", h.MarkPaid, auth.RequireRole(auth.RoleClient))
}

type createRequest struct {
	SlotID uuid.UUID `json:"slot_id"`
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SlotID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "slot_id is required")
	}
	b, err := h.svc.Create(c.Request().Context(), actor, req.SlotID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) List(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	f := Filter{Status: Status(c.QueryParam("status"))}
	if v := c.QueryParam("from"); v != "" {
		f.From, err = time.Parse(time.DateOnly, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		f.To, err = time.Parse(time.DateOnly, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
	}
	p := pagination.FromContext(c)
	f.Limit = p.Limit
	f.Offset = p.Offset

	items, total, err := h.svc.List(c.Request().Context(), actor, f)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.transition(c, func(actor auth.Actor, id uuid.UUID, ec echo.Context) (*Booking, error) {
		return h.svc.Confirm(ec.Request().Context(), actor, id)
	})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Reject(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.transition(c, func(actor auth.Actor, id uuid.UUID, ec echo.Context) (*Booking, error) {
		return h.svc.Reject(ec.Request().Context(), actor, id, req.Reason)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Cancel(c.Request().Context(), actor, id, req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"booking":            res.Booking,
		"threshold_exceeded": res.ThresholdExceeded,
	})
}

type noShowRequest struct {
	Party NoShowParty `json:"party"`
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	var req noShowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.transition(c, func(actor auth.Actor, id uuid.UUID, ec echo.Context) (*Booking, error) {
		return h.svc.MarkNoShow(ec.Request().Context(), actor, id, req.Party)
	})
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, func(actor auth.Actor, id uuid.UUID, ec echo.Context) (*Booking, error) {
		return h.svc.Complete(ec.Request().Context(), actor, id)
	})
}

func (h *Handler) MarkPaid(c echo.Context) error {
	return h.transition(c, func(actor auth.Actor, id uuid.UUID, ec echo.Context) (*Booking, error) {
		return h.svc.MarkPaid(ec.Request().Context(), actor, id)
	})
}

func (h *Handler) transition(c echo.Context, op func(auth.Actor, uuid.UUID, echo.Context) (*Booking, error)) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := op(actor, id, c)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, b)
}

// mapError translates the engine's error taxonomy onto HTTP status codes.
// Conflicts (409) are retryable races; business logic failures (422) are not.
func mapError(err error) error {
	var (
		notFound *NotFoundError
		forbid   *ForbiddenError
		invalid  *ValidationError
		conflict *ConflictError
		logic    *BusinessLogicError
	)
	switch {
	case errors.As(err, &notFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &forbid):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &logic):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
