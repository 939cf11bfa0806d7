package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"restaurant-service/database"
	"restaurant-service/middlewares"
	"restaurant-service/models"
	"restaurant-service/session"
	"restaurant-service/store"
)

// HandoffController mediates the waiter-to-cashier cash handoff as a
// server-side pending record: the waiter opens it, the cashier confirms it,
// and confirmation pays the order through the state machine. No two devices
// ever hold their own copy of the truth.
type HandoffController struct {
	orders   *store.OrderStore
	repo     *database.OrderRepository
	sessions *session.Manager
	log      zerolog.Logger
}

func NewHandoffController(orders *store.OrderStore, repo *database.OrderRepository, sessions *session.Manager, log zerolog.Logger) *HandoffController {
	return &HandoffController{orders: orders, repo: repo, sessions: sessions, log: log}
}

type createHandoffRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// CreateHandoff opens a pending cash collection for a served order.
func (ctl *HandoffController) CreateHandoff(c *gin.Context) {
	var req createHandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := ctl.orders.FindByID(req.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if order.Status != models.StatusServed && order.Status != models.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "order is not awaiting payment"})
		return
	}

	h := session.Handoff{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		WaiterID:  c.GetString(middlewares.CtxUserID),
		Amount:    order.TotalAmount,
		CreatedAt: time.Now().UTC(),
	}
	if err := ctl.sessions.CreateHandoff(c.Request.Context(), h); errors.Is(err, session.ErrHandoffExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "handoff already pending for order"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create handoff"})
		return
	}

	c.JSON(http.StatusCreated, h)
}

// ConfirmHandoff consumes the pending record and marks the order paid. The
// record is taken atomically, so a double confirmation loses cleanly.
func (ctl *HandoffController) ConfirmHandoff(c *gin.Context) {
	orderID := c.Param("id")
	cashierID := c.GetString(middlewares.CtxUserID)

	h, err := ctl.sessions.ConfirmHandoff(c.Request.Context(), orderID, cashierID)
	if errors.Is(err, session.ErrHandoffMissing) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending handoff"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "confirm failed"})
		return
	}

	updated, err := ctl.orders.ApplyTransitionWith(h.OrderID, models.StatusPaid, func(o *models.Order) error {
		return ctl.repo.UpdateStatus(c.Request.Context(), o.ID, o.Status, o.CompletedAt)
	})
	if err != nil {
		// The pending record is already consumed; leave a trace of the
		// cash collection that never reached paid.
		ctl.log.Warn().
			Str("handoff_id", h.ID).
			Str("order_id", h.OrderID).
			Str("waiter_id", h.WaiterID).
			Str("cashier_id", cashierID).
			Float64("amount", h.Amount).
			Err(err).
			Msg("handoff consumed but order not paid")
		switch {
		case errors.Is(err, models.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist payment"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"handoff": h, "order": viewFor(*updated, models.RoleWaiter)})
}
