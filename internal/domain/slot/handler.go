package slot

import (
	"context"
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

// RegisterRoutes wires discovery endpoints on the public group, which carries
// no authentication, and management endpoints on the authed group.
func (h *Handler) RegisterRoutes(public, authed *echo.Group) {
	public.GET("/slots/:id", h.GetSlot)
	public.GET("/providers/:providerId/slots", h.ListSlots)
	public.GET("/providers/:providerId/event-configs", h.ListConfigs)
	public.GET("/event-configs/:id", h.GetConfig)

	manage := authed.Group("", auth.RequireRole(auth.RoleProvider))
	manage.POST("/event-configs", h.CreateConfig)
	manage.PUT("/event-configs/:id", h.UpdateConfig)
	manage.DELETE("/event-configs/:id", h.DeleteConfig)
	manage.POST("/event-configs/:id/generate", h.GenerateSlots)
	manage.POST("/slots/:id/block", h.BlockSlot)
	manage.POST("/slots/:id/unblock", h.UnblockSlot)
}

// -- Event configuration handlers --

func (h *Handler) CreateConfig(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var cfg EventConfiguration
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateConfig(c.Request().Context(), actor, &cfg); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, cfg)
}

func (h *Handler) GetConfig(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cfg, err := h.svc.GetConfig(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) ListConfigs(c echo.Context) error {
	providerID, err := uuid.Parse(c.Param("providerId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}
	configs, err := h.svc.ListConfigs(c.Request().Context(), providerID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, configs)
}

func (h *Handler) UpdateConfig(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var cfg EventConfiguration
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg.ID = id
	if err := h.svc.UpdateConfig(c.Request().Context(), actor, &cfg); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) DeleteConfig(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteConfig(c.Request().Context(), actor, id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type generateRequest struct {
	RangeStart string `json:"range_start"`
	RangeEnd   string `json:"range_end"`
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, err := time.Parse(time.DateOnly, req.RangeStart)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "range_start must be YYYY-MM-DD")
	}
	end, err := time.Parse(time.DateOnly, req.RangeEnd)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "range_end must be YYYY-MM-DD")
	}
	inserted, err := h.svc.GenerateForConfig(c.Request().Context(), actor, id, start, end)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"inserted": inserted})
}

// -- Slot handlers --

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSlots(c echo.Context) error {
	providerID, err := uuid.Parse(c.Param("providerId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}
	from := time.Now()
	if v := c.QueryParam("from"); v != "" {
		from, err = time.Parse(time.DateOnly, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
	}
	var to time.Time
	if v := c.QueryParam("to"); v != "" {
		to, err = time.Parse(time.DateOnly, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
	}
	status := Status(c.QueryParam("status"))

	p := pagination.FromContext(c)
	items, total, err := h.svc.ListSlots(c.Request().Context(), providerID, from, to, status, p.Limit, p.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) BlockSlot(c echo.Context) error {
	return h.setSlotStatus(c, (*Service).BlockSlot)
}

func (h *Handler) UnblockSlot(c echo.Context) error {
	return h.setSlotStatus(c, (*Service).UnblockSlot)
}

func (h *Handler) setSlotStatus(c echo.Context, op func(*Service, context.Context, auth.Actor, uuid.UUID) error) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := op(h.svc, c.Request().Context(), actor, id); err != nil {
		return mapError(err)
	}
	s, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
