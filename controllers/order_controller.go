package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"restaurant-service/config"
	"restaurant-service/database"
	"restaurant-service/middlewares"
	"restaurant-service/models"
	"restaurant-service/rabbitmq"
	"restaurant-service/session"
	"restaurant-service/store"
)

// OrderController wires the order endpoints to the in-memory store, the
// durable repository and the event broker. The store is authoritative for
// lifecycle rules; the repository is write-through persistence.
type OrderController struct {
	orders   *store.OrderStore
	repo     *database.OrderRepository
	sessions *session.Manager
	rmq      *rabbitmq.RabbitMQ
	cfg      *config.Config
	log      zerolog.Logger
}

func NewOrderController(orders *store.OrderStore, repo *database.OrderRepository, sessions *session.Manager, rmq *rabbitmq.RabbitMQ, cfg *config.Config, log zerolog.Logger) *OrderController {
	return &OrderController{orders: orders, repo: repo, sessions: sessions, rmq: rmq, cfg: cfg, log: log}
}

// orderView decorates an order with the display label for the caller's
// role, so the dashboards never grow their own status vocabulary.
type orderView struct {
	models.Order
	StatusLabel string `json:"status_label"`
}

func viewFor(o models.Order, role models.Role) orderView {
	return orderView{Order: o, StatusLabel: o.Status.LabelFor(role)}
}

func viewsFor(orders []models.Order, role models.Role) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, viewFor(o, role))
	}
	return out
}

func callerRole(c *gin.Context) models.Role {
	if v, ok := c.Get(middlewares.CtxRole); ok {
		if r, ok := v.(models.Role); ok {
			return r
		}
	}
	return ""
}

type createOrderRequest struct {
	Items []models.OrderItem `json:"items" binding:"required"`
}

// CreateOrder places a new order for the authenticated customer on their
// bound table. The guard has already ensured a binding exists; the table id
// is resolved once here, with an explicit URL parameter taking precedence.
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("create", success) }()

	customerID := c.GetString(middlewares.CtxUserID)

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bound, err := ctl.sessions.BoundTable(c.Request.Context(), customerID)
	if err != nil && !errors.Is(err, session.ErrNoBinding) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve table binding"})
		return
	}
	tableID := session.ResolveTableID(c.Query("tableId"), bound, c.GetHeader("X-Table-Fallback"))

	order, err := models.NewOrder(uuid.NewString(), customerID, tableID, req.Items, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.orders.Add(order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := ctl.repo.SaveOrder(c.Request.Context(), order); err != nil {
		_ = ctl.orders.Remove(order.ID, "system:rollback")
		ctl.log.Error().Err(err).Str("order_id", order.ID).Msg("persist order failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create order"})
		return
	}

	success = true
	c.JSON(http.StatusCreated, viewFor(*order, models.RoleCustomer))

	ctl.publish(c, models.OrderEvent{
		OrderID:  order.ID,
		Type:     "created",
		Status:   order.Status,
		TableID:  order.TableID,
		Total:    order.TotalAmount,
		Occurred: time.Now().UTC(),
	}, priorityFor(order.TotalAmount, order.Status))

	ctl.schedulePaymentCheck(c, order)
}

// GetUserOrders lists the authenticated customer's own orders.
func (ctl *OrderController) GetUserOrders(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("list", success) }()

	customerID := c.GetString(middlewares.CtxUserID)
	orders := ctl.orders.FilterByCustomer(customerID)

	success = true
	c.JSON(http.StatusOK, viewsFor(orders, callerRole(c)))
}

// GetOrderDetails returns one order. Customers only ever see their own;
// a foreign id reads as not found.
func (ctl *OrderController) GetOrderDetails(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("details", success) }()

	order, err := ctl.orders.FindByID(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	role := callerRole(c)
	if role == models.RoleCustomer && order.CustomerID != c.GetString(middlewares.CtxUserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	success = true
	c.JSON(http.StatusOK, viewFor(*order, role))
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus applies one status transition through the state
// machine. A rejected transition comes back as an inline message so the
// dashboard can show it next to the action that triggered it.
func (ctl *OrderController) UpdateOrderStatus(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("update_status", success) }()

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, ok := models.ParseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + req.Status})
		return
	}

	id := c.Param("id")
	before, err := ctl.orders.FindByID(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	// The durable write happens inside the transition: if MySQL rejects
	// it, the in-memory status does not move either and the caller sees
	// the failure instead of a success that would vanish on restart.
	updated, err := ctl.orders.ApplyTransitionWith(id, target, func(o *models.Order) error {
		return ctl.repo.UpdateStatus(c.Request.Context(), o.ID, o.Status, o.CompletedAt)
	})
	if errors.Is(err, models.ErrInvalidTransition) {
		middlewares.RecordTransitionDenied(string(before.Status), string(target))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		ctl.log.Error().Err(err).Str("order_id", id).Msg("persist status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist status change"})
		return
	}

	success = true
	c.JSON(http.StatusOK, viewFor(*updated, callerRole(c)))

	ctl.publish(c, models.OrderEvent{
		OrderID:  updated.ID,
		Type:     "status_updated",
		Status:   updated.Status,
		TableID:  updated.TableID,
		Total:    updated.TotalAmount,
		Occurred: time.Now().UTC(),
	}, priorityFor(updated.TotalAmount, updated.Status))
}

// ListKitchenOrders is the kitchen board: everything not yet out the door.
func (ctl *OrderController) ListKitchenOrders(c *gin.Context) {
	orders := ctl.orders.FilterByStatus(
		models.StatusPlaced, models.StatusConfirmed, models.StatusPreparing, models.StatusReady,
	)
	c.JSON(http.StatusOK, viewsFor(orders, models.RoleKitchen))
}

// ListWaiterOrders is the floor board: ready to serve or awaiting payment.
func (ctl *OrderController) ListWaiterOrders(c *gin.Context) {
	orders := ctl.orders.FilterByStatus(
		models.StatusReady, models.StatusServed, models.StatusCompleted,
	)
	c.JSON(http.StatusOK, viewsFor(orders, models.RoleWaiter))
}

// ListAdminOrders shows everything, optionally filtered by canonical status.
func (ctl *OrderController) ListAdminOrders(c *gin.Context) {
	var orders []models.Order
	if raw := c.Query("status"); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + raw})
			return
		}
		orders = ctl.orders.FilterByStatus(st)
	} else {
		orders = ctl.orders.All()
	}
	c.JSON(http.StatusOK, viewsFor(orders, models.RoleAdmin))
}

// DeleteOrder is the admin escape hatch outside the status machine. The
// store audit-logs it with the acting identity.
func (ctl *OrderController) DeleteOrder(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("delete", success) }()

	id := c.Param("id")
	actorID := c.GetString(middlewares.CtxUserID)

	if err := ctl.orders.Remove(id, actorID); errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if err := ctl.repo.DeleteOrder(c.Request.Context(), id); err != nil {
		ctl.log.Error().Err(err).Str("order_id", id).Msg("persist delete failed")
	}

	success = true
	c.JSON(http.StatusOK, gin.H{"message": "order deleted", "order_id": id})
}

func (ctl *OrderController) publish(c *gin.Context, event models.OrderEvent, priority int) {
	if ctl.rmq == nil {
		return
	}
	if err := ctl.rmq.PublishOrderEvent(c.Request.Context(), event, priority); err != nil {
		ctl.log.Error().Err(err).Str("order_id", event.OrderID).Str("type", event.Type).Msg("publish event failed")
	}
}

func (ctl *OrderController) schedulePaymentCheck(c *gin.Context, order *models.Order) {
	if ctl.rmq == nil {
		return
	}
	event := models.OrderEvent{
		OrderID:  order.ID,
		Type:     "payment_check",
		Status:   order.Status,
		TableID:  order.TableID,
		Total:    order.TotalAmount,
		Occurred: time.Now().UTC(),
	}
	if err := ctl.rmq.PublishDelayedEvent(c.Request.Context(), event, ctl.cfg.PaymentWindow); err != nil {
		ctl.log.Error().Err(err).Str("order_id", order.ID).Msg("schedule payment check failed")
	}
}

// priorityFor ranks events for the priority queue: cancellations and big
// tickets jump ahead of routine updates.
func priorityFor(total float64, status models.Status) int {
	if status == models.StatusCancelled {
		return 8
	}
	if total > 100 {
		return 9
	}
	return 5
}
