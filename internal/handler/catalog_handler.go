package handler

import (
	"net/http"

	"salesledger/internal/model"
	"salesledger/internal/service"
	"salesledger/pkg/pagination"
	"salesledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService service.CatalogService
	guard          RoleGuard
}

func NewCatalogHandler(catalogService service.CatalogService, guard RoleGuard) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, guard: guard}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := h.guard(model.RoleAdmin, model.RoleManager)
	anyone := h.guard()

	api := router.Group("/api")
	{
		api.GET("/products", anyone, h.ListProducts)
		api.GET("/products/:id", anyone, h.GetProduct)
		api.POST("/products", staff, h.CreateProduct)

		api.GET("/customer-groups", anyone, h.ListCustomerGroups)
		api.POST("/customer-groups", staff, h.CreateCustomerGroup)

		api.GET("/customers", anyone, h.ListCustomers)
		api.GET("/customers/:id", anyone, h.GetCustomer)
		api.POST("/customers", h.guard(model.RoleAdmin, model.RoleManager, model.RoleSales), h.CreateCustomer)
	}
}

// ListProducts handles retrieving paginated products with their stock
// @Summary      List products
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by SKU or name"
// @Success      200     {object}  response.Response{data=pagination.Page}
// @Router       /api/products [get]
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	p := pagination.Parse(c)

	products, total, err := h.catalogService.ListProducts(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(products, total, p)))
}

// GetProduct
// @Summary      Get product
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response{data=model.Product}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// CreateProduct adds a product with its four price tiers
// @Summary      Create product
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProductRequest  true  "Create Product Payload"
// @Success      201      {object}  response.Response{data=model.Product}
// @Failure      400      {object}  response.Response
// @Router       /api/products [post]
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	product, err := h.catalogService.CreateProduct(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// ListCustomerGroups
// @Summary      List customer groups
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.CustomerGroup}
// @Router       /api/customer-groups [get]
func (h *CatalogHandler) ListCustomerGroups(c *gin.Context) {
	groups, err := h.catalogService.ListCustomerGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, groups))
}

// CreateCustomerGroup creates a pricing group
// @Summary      Create customer group
// @Tags         customers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateCustomerGroupRequest  true  "Group"
// @Success      201      {object}  response.Response{data=model.CustomerGroup}
// @Failure      400      {object}  response.Response
// @Router       /api/customer-groups [post]
func (h *CatalogHandler) CreateCustomerGroup(c *gin.Context) {
	var req service.CreateCustomerGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	group, err := h.catalogService.CreateCustomerGroup(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, group))
}

// ListCustomers
// @Summary      List customers
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by name, code or phone"
// @Success      200     {object}  response.Response{data=pagination.Page}
// @Router       /api/customers [get]
func (h *CatalogHandler) ListCustomers(c *gin.Context) {
	p := pagination.Parse(c)

	customers, total, err := h.catalogService.ListCustomers(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(customers, total, p)))
}

// GetCustomer returns a customer with its group and running debt
// @Summary      Get customer
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  response.Response{data=model.Customer}
// @Failure      404  {object}  response.Response
// @Router       /api/customers/{id} [get]
func (h *CatalogHandler) GetCustomer(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	customer, err := h.catalogService.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, customer))
}

// CreateCustomer
// @Summary      Create customer
// @Description  A CUS-prefixed code is generated when none is supplied
// @Tags         customers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateCustomerRequest  true  "Customer"
// @Success      201      {object}  response.Response{data=model.Customer}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/customers [post]
func (h *CatalogHandler) CreateCustomer(c *gin.Context) {
	var req service.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	customer, err := h.catalogService.CreateCustomer(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, customer))
}
