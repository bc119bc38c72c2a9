// Package api is the HTTP surface over the timer orchestrator. It owns
// nothing but parameter parsing and the mapping from typed errors to status
// codes; all semantics live in the kitchen package.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"expediter/internal/display"
	"expediter/internal/kitchen"
	"expediter/internal/lifecycle"
	"expediter/internal/models"
)

// Server wires the gin router to the timer service and the display hub
type Server struct {
	Router *gin.Engine
	timers *kitchen.TimerService
	hub    *display.Hub
	log    *zap.Logger
}

// NewServer builds the router. jwtSecret enables bearer-token auth on the
// API group when non-empty; the health check and display socket stay open.
func NewServer(timers *kitchen.TimerService, hub *display.Hub, log *zap.Logger, jwtSecret string) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		Router: router,
		timers: timers,
		hub:    hub,
		log:    log,
	}
	s.setupRoutes(jwtSecret)
	return s
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(jwtSecret string) {
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.Router.GET("/ws", s.hub.HandleWS)

	v1 := s.Router.Group("/api/v1")
	if jwtSecret != "" {
		v1.Use(AuthMiddleware(jwtSecret))
	}
	{
		v1.POST("/orders", s.CreateOrder)
		v1.GET("/orders", s.ListOrders)
		v1.GET("/orders/:id", s.GetOrder)
		v1.DELETE("/orders/:id", s.DeleteOrder)

		v1.POST("/orders/:id/timer", s.StartTimer)
		v1.GET("/orders/:id/timer", s.GetTimerStatus)
		v1.DELETE("/orders/:id/timer", s.CancelTimer)
		v1.POST("/orders/:id/timer/extend", s.ExtendTimer)
		v1.POST("/orders/:id/complete", s.CompleteOrder)

		v1.DELETE("/restaurants/:id/orders", s.DeleteAllOrders)
	}
}

type createOrderRequest struct {
	RestaurantID uint   `json:"restaurant_id" binding:"required"`
	TableSection string `json:"table_section"`
	MenuItemID   uint   `json:"menu_item_id"`
	BatchSize    int    `json:"batch_size"`
	BatchNumber  int    `json:"batch_number"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := &models.Order{
		RestaurantID: req.RestaurantID,
		TableSection: req.TableSection,
		MenuItemID:   req.MenuItemID,
		BatchSize:    req.BatchSize,
		BatchNumber:  req.BatchNumber,
	}
	created, err := s.timers.CreateOrder(c.Request.Context(), order)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) GetOrder(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	order, err := s.timers.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) ListOrders(c *gin.Context) {
	restaurantID, _ := strconv.ParseUint(c.Query("restaurant"), 10, 32)
	orders, err := s.timers.ListOrders(c.Request.Context(), uint(restaurantID))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) StartTimer(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.timers.StartTimer(c.Request.Context(), id, req.Minutes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) CancelTimer(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	order, err := s.timers.CancelTimer(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) ExtendTimer(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.timers.ExtendTimer(c.Request.Context(), id, req.Seconds)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) CompleteOrder(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	var req struct {
		CompletedAt *time.Time `json:"completed_at"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	order, err := s.timers.CompleteOrder(c.Request.Context(), id, req.CompletedAt)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) GetTimerStatus(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	status, err := s.timers.GetTimerStatus(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) DeleteOrder(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	if err := s.timers.DeleteOrder(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
}

func (s *Server) DeleteAllOrders(c *gin.Context) {
	restaurantID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid restaurant id"})
		return
	}
	deleted, err := s.timers.DeleteAllOrders(c.Request.Context(), uint(restaurantID))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return uint(id), true
}

// writeError maps the kitchen error taxonomy onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var invalid *lifecycle.InvalidTransitionError
	var validation *lifecycle.ValidationError

	switch {
	case errors.Is(err, kitchen.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{
			"error":     invalid.Error(),
			"current":   invalid.Current,
			"attempted": invalid.Attempted,
		})
	case errors.Is(err, kitchen.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "order modified concurrently, retry"})
	default:
		s.log.Error("command failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
