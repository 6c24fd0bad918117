package handler

import (
	"net/http"

	"salesledger/internal/apperr"
	"salesledger/internal/model"
	"salesledger/internal/repository"
	"salesledger/internal/service"
	"salesledger/pkg/pagination"
	"salesledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderHandler struct {
	orderService   service.OrderService
	paymentService service.PaymentService
	returnService  service.ReturnService
	guard          RoleGuard
	idempotent     gin.HandlerFunc
}

func NewOrderHandler(
	orderService service.OrderService,
	paymentService service.PaymentService,
	returnService service.ReturnService,
	guard RoleGuard,
	idempotent gin.HandlerFunc,
) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		paymentService: paymentService,
		returnService:  returnService,
		guard:          guard,
		idempotent:     idempotent,
	}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := h.guard(model.RoleAdmin, model.RoleManager)
	anyone := h.guard()

	orders := router.Group("/api/orders")
	{
		orders.GET("", anyone, h.ListOrders)
		orders.POST("", anyone, h.idempotent, h.CreateOrder)
		orders.GET("/:id", anyone, h.GetOrder)
		orders.PATCH("/:id/status", staff, h.UpdateOrderStatus)
		orders.POST("/:id/cancel", anyone, h.CancelOrder)

		orders.GET("/:id/payments", anyone, h.ListPayments)
		orders.POST("/:id/payments", h.guard(model.RoleAdmin, model.RoleManager, model.RoleSales), h.idempotent, h.RecordPayment)

		orders.GET("/:id/returns", anyone, h.ListReturns)
		orders.POST("/:id/returns", staff, h.idempotent, h.CreateReturn)
	}
}

// visibleOrder loads the order and hides other users' orders from sales staff.
func (h *OrderHandler) visibleOrder(c *gin.Context, id uuid.UUID) (*model.Order, bool) {
	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	userID, role := currentUser(c)
	if role == model.RoleSales && (order.CreatedByID == nil || order.CreatedByID.String() != userID) {
		respondError(c, apperr.Forbidden("order %s was created by another user", order.Code))
		return nil, false
	}
	return order, true
}

// CreateOrder records a sale and books its debt
// @Summary      Create order
// @Description  Prices every line from the customer's group tier (or the line override), books the unpaid remainder as customer debt and records the optional paid-at-creation payment in one transaction
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                      false  "Replay protection key"
// @Param        payload          body      service.CreateOrderRequest  true   "Create Order Payload"
// @Success      201              {object}  response.Response{data=model.Order}
// @Failure      400              {object}  response.Response
// @Failure      404              {object}  response.Response
// @Failure      503              {object}  response.Response
// @Router       /api/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	order, err := h.orderService.CreateOrder(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// ListOrders returns orders newest first; sales staff only see their own
// @Summary      List orders
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Param        status       query     string  false  "PENDING, APPROVED, COMPLETED or CANCELLED"
// @Param        customer_id  query     string  false  "Customer ID"
// @Success      200          {object}  response.Response{data=pagination.Page}
// @Failure      400          {object}  response.Response
// @Router       /api/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	p := pagination.Parse(c)
	customerID, ok := uuidQuery(c, "customer_id")
	if !ok {
		return
	}

	filter := repository.OrderFilter{
		Status:     model.OrderStatus(c.Query("status")),
		CustomerID: customerID,
		Page:       p.Page,
		Limit:      p.Limit,
	}
	userID, role := currentUser(c)
	if role == model.RoleSales {
		own, err := uuid.Parse(userID)
		if err != nil {
			respondError(c, apperr.Forbidden("invalid subject"))
			return
		}
		filter.CreatedByID = &own
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(orders, total, p)))
}

// GetOrder returns one order with its lines
// @Summary      Get order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	order, ok := h.visibleOrder(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// UpdateOrderStatus moves an order along PENDING -> APPROVED -> COMPLETED
// @Summary      Update order status
// @Description  Cancelling through this route reverts the order's outstanding debt like POST /cancel
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Order ID"
// @Param        payload  body      service.UpdateOrderStatusRequest  true  "Target status"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), userID, id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// CancelOrder cancels an order and reverts its debt
// @Summary      Cancel order
// @Description  Admins and managers cancel any non-terminal order; sales staff only their own PENDING orders
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	userID, role := currentUser(c)
	var err error
	switch role {
	case model.RoleAdmin, model.RoleManager:
		err = h.orderService.CancelOrder(c.Request.Context(), userID, id)
	case model.RoleSales:
		err = h.orderService.CancelOwnPendingOrder(c.Request.Context(), userID, id)
	default:
		err = apperr.Forbidden("role %q may not cancel orders", role)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Order cancelled successfully"))
}

// RecordPayment applies a customer payment to an order
// @Summary      Record payment
// @Description  Sales staff may only pay against orders they created
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id               path      string                        true   "Order ID"
// @Param        Idempotency-Key  header    string                        false  "Replay protection key"
// @Param        payload          body      service.RecordPaymentRequest  true   "Payment"
// @Success      201              {object}  response.Response{data=model.Payment}
// @Failure      400              {object}  response.Response
// @Failure      403              {object}  response.Response
// @Failure      404              {object}  response.Response
// @Router       /api/orders/{id}/payments [post]
func (h *OrderHandler) RecordPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if _, ok := h.visibleOrder(c, id); !ok {
		return
	}

	userID, _ := currentUser(c)
	payment, err := h.paymentService.RecordPayment(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// ListPayments returns the payments of an order in the order they were recorded
// @Summary      List payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]model.Payment}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/payments [get]
func (h *OrderHandler) ListPayments(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, ok := h.visibleOrder(c, id); !ok {
		return
	}

	payments, err := h.paymentService.ListPayments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payments))
}

// CreateReturn takes goods back from a completed order
// @Summary      Create return
// @Description  Restocks the returned lines and credits the refund to the customer, paying down the order's remaining debt first
// @Tags         returns
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id               path      string                       true   "Order ID"
// @Param        Idempotency-Key  header    string                       false  "Replay protection key"
// @Param        payload          body      service.CreateReturnRequest  true   "Return"
// @Success      201              {object}  response.Response{data=model.OrderReturn}
// @Failure      400              {object}  response.Response
// @Failure      404              {object}  response.Response
// @Router       /api/orders/{id}/returns [post]
func (h *OrderHandler) CreateReturn(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	ret, err := h.returnService.CreateReturn(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, ret))
}

// ListReturns returns every return taken against an order
// @Summary      List returns
// @Tags         returns
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]model.OrderReturn}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/returns [get]
func (h *OrderHandler) ListReturns(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, ok := h.visibleOrder(c, id); !ok {
		return
	}

	returns, err := h.returnService.ListReturns(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, returns))
}
