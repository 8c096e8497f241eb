package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mqtt-auth/internal/auth"
	"mqtt-auth/internal/domain"
	"mqtt-auth/internal/mqtt"
	"mqtt-auth/internal/repository"
	"mqtt-auth/internal/service"
)

// Broker is the wire-client surface the handlers need: a live connectivity
// probe and a one-shot publish.
type Broker interface {
	TestConnection(ctx context.Context, username, password string) error
	Publish(ctx context.Context, topic, payload string, qos byte, retain bool) error
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users  service.UserService
	acls   service.ACLService
	broker Broker
	issuer *auth.Issuer
}

func NewHandler(users service.UserService, acls service.ACLService, broker Broker, issuer *auth.Issuer) *Handler {
	return &Handler{
		users:  users,
		acls:   acls,
		broker: broker,
		issuer: issuer,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(cors.Default())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "MQTT Auth API Server",
			"version": "1.0.0",
			"endpoints": gin.H{
				"users": "/api/users",
				"acls":  "/api/acls",
				"mqtt":  "/api/mqtt",
			},
		})
	})

	api := router.Group("/api")
	api.POST("/users/login", h.login)

	protected := api.Group("", auth.RequireToken(h.issuer))
	{
		protected.POST("/users", h.createUser)
		protected.GET("/users", h.listUsers)
		protected.GET("/users/:username", h.getUser)
		protected.PUT("/users/:username", h.updateUser)
		protected.DELETE("/users/:username", h.deleteUser)

		protected.POST("/acls/:username", h.addACL)
		protected.DELETE("/acls/:username", h.removeACL)
		protected.GET("/acls/:username", h.listACLs)

		protected.POST("/mqtt/publish", h.publish)
		protected.POST("/mqtt/test-connection", h.testConnection)
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createUserRequest struct {
	Username  string       `json:"username" binding:"required"`
	Password  string       `json:"password" binding:"required"`
	Superuser bool         `json:"superuser"`
	ACLs      []domain.ACL `json:"acls"`
}

type updateUserRequest struct {
	Password  *string      `json:"password"`
	Superuser *bool        `json:"superuser"`
	ACLs      []domain.ACL `json:"acls"`
}

type addACLRequest struct {
	Topic string `json:"topic" binding:"required"`
	Acc   int    `json:"acc" binding:"required"`
}

type removeACLRequest struct {
	Topic string `json:"topic" binding:"required"`
}

type publishRequest struct {
	Topic   string `json:"topic" binding:"required"`
	Payload string `json:"payload" binding:"required"`
	QoS     byte   `json:"qos" binding:"lte=2"`
	Retain  bool   `json:"retain"`
}

type testConnectionRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is an account without its password material.
type UserResponse struct {
	ID        int64        `json:"id"`
	Username  string       `json:"username"`
	Superuser bool         `json:"superuser"`
	ACLs      []domain.ACL `json:"acls"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	role := auth.RoleUser
	if user.Superuser {
		role = auth.RoleAdmin
	}
	token, err := h.issuer.Issue(user.Username, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"username":  user.Username,
			"superuser": user.Superuser,
		},
	})
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Username, req.Password, req.Superuser, req.ACLs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidAccess), errors.Is(err, service.ErrInvalidTopic):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "user created successfully",
		"userId":   user.ID,
		"username": user.Username,
	})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToResponse(*user)})
}

func (h *Handler) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := repository.UserUpdate{
		Password:  req.Password,
		Superuser: req.Superuser,
		ACLs:      req.ACLs,
	}
	if err := h.users.Update(c.Request.Context(), c.Param("username"), upd); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidAccess), errors.Is(err, service.ErrInvalidTopic):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user updated successfully"})
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("username")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted successfully"})
}

func (h *Handler) addACL(c *gin.Context) {
	var req addACLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acl, err := h.acls.Add(c.Request.Context(), c.Param("username"), req.Topic, req.Acc)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidAccess), errors.Is(err, service.ErrInvalidTopic):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "acl added successfully", "acl": acl})
}

func (h *Handler) removeACL(c *gin.Context) {
	var req removeACLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.acls.Remove(c.Request.Context(), c.Param("username"), req.Topic); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "acl removed successfully"})
}

func (h *Handler) listACLs(c *gin.Context) {
	acls, err := h.acls.List(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"acls": acls})
}

func (h *Handler) publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.broker.Publish(c.Request.Context(), req.Topic, req.Payload, req.QoS, req.Retain); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "published successfully",
		"topic":   req.Topic,
		"payload": req.Payload,
	})
}

func (h *Handler) testConnection(c *gin.Context) {
	var req testConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.broker.TestConnection(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "connection successful", "connected": true})
	case errors.Is(err, mqtt.ErrConnectTimeout):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "connection timeout"})
	case mqtt.IsAuthError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials", "connected": false})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "connected": false})
	}
}

func userToResponse(user domain.User) UserResponse {
	acls := user.ACLs
	if acls == nil {
		acls = []domain.ACL{}
	}
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Superuser: user.Superuser,
		ACLs:      acls,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}
