package handler

import (
	"errors"
	"net/http"

	"patentpay/internal/middleware"
	"patentpay/internal/service"
	"patentpay/pkg/pagination"
	"patentpay/pkg/response"

	"github.com/gin-gonic/gin"
)

type PatentHandler struct {
	patentService  service.PatentService
	paymentService service.PaymentService
}

func NewPatentHandler(patentService service.PatentService, paymentService service.PaymentService) *PatentHandler {
	return &PatentHandler{
		patentService:  patentService,
		paymentService: paymentService,
	}
}

func (h *PatentHandler) RegisterRoutes(router *gin.RouterGroup) {
	patents := router.Group("/api/patents")
	patents.Use(middleware.RequireAuth())
	{
		patents.POST("", h.CreatePatent)
		patents.GET("", h.ListPatents)
		patents.GET("/:id", h.GetPatent)
		patents.POST("/:id/pay", h.InitiatePayment)
	}
}

func callerID(c *gin.Context) string {
	userID, _ := c.Get("userID")
	id, _ := userID.(string)
	return id
}

// CreatePatent registers a new tax patent for the caller
// @Summary      Create patent
// @Description  Registers a new tax patent owned by the authenticated taxpayer
// @Tags         patents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePatentRequest  true  "Create Patent Payload"
// @Success      201      {object}  response.Response{data=service.PatentResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/patents [post]
func (h *PatentHandler) CreatePatent(c *gin.Context) {
	var req service.CreatePatentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	patent, err := h.patentService.CreatePatent(c.Request.Context(), callerID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, patent))
}

// ListPatents returns the caller's patents
// @Summary      List patents
// @Description  Retrieves a paginated list of the caller's patents
// @Tags         patents
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/patents [get]
func (h *PatentHandler) ListPatents(c *gin.Context) {
	params := pagination.Parse(c)

	patents, total, err := h.patentService.ListPatents(c.Request.Context(), callerID(c), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"patents": patents,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}

// GetPatent returns one of the caller's patents
// @Summary      Get patent
// @Description  Retrieves a single patent by ID
// @Tags         patents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Patent ID"
// @Success      200  {object}  response.Response{data=service.PatentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/patents/{id} [get]
func (h *PatentHandler) GetPatent(c *gin.Context) {
	patent, err := h.patentService.GetPatent(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrPatentNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, patent))
}

// InitiatePayment starts payment of a patent through the bank
// @Summary      Initiate payment
// @Description  Creates a payment for the patent and registers it with the bank; returns the bank pay URL
// @Tags         patents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Patent ID"
// @Success      201  {object}  response.Response{data=service.PaymentInitResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Failure      502  {object}  response.Response
// @Router       /api/patents/{id}/pay [post]
func (h *PatentHandler) InitiatePayment(c *gin.Context) {
	result, err := h.paymentService.InitiatePayment(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPatentNotFound):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		case errors.Is(err, service.ErrPatentAlreadyPaid), errors.Is(err, service.ErrPaymentInFlight):
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
		default:
			// Bank-side failure: the payment stays NEW for reconciliation
			c.JSON(http.StatusBadGateway, response.Error(http.StatusBadGateway, err.Error()))
		}
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}
