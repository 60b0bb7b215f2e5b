package httpapi

import (
	"net/http"
	"strconv"

	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// pathID returns the :id parameter, answering 400 when it is not a UUID.
func pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", "id must be a UUID"))
		return "", false
	}
	return id, true
}

type dashboardHandler struct {
	service DashboardAPI
}

func (h *dashboardHandler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type doctorHandler struct {
	service DoctorAPI
}

func (h *doctorHandler) list(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.service.List(c.Request.Context(), c.Query("search"), c.Query("status"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *doctorHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	doctor, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

func (h *doctorHandler) create(c *gin.Context) {
	var req models.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	doctor, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doctor)
}

func (h *doctorHandler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	doctor, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

func (h *doctorHandler) delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *doctorHandler) setStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdateDoctorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	doctor, err := h.service.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

func (h *doctorHandler) assignSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.AssignSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	doctor, err := h.service.AssignSubscription(c.Request.Context(), id, req.SubscriptionTypeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

type catalogHandler struct {
	service CatalogAPI
}

func (h *catalogHandler) listSubscriptionTypes(c *gin.Context) {
	items, err := h.service.ListSubscriptionTypes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *catalogHandler) getSubscriptionType(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.service.GetSubscriptionType(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *catalogHandler) createSubscriptionType(c *gin.Context) {
	var req models.SubscriptionTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	item, err := h.service.CreateSubscriptionType(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *catalogHandler) updateSubscriptionType(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.SubscriptionTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	item, err := h.service.UpdateSubscriptionType(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *catalogHandler) deleteSubscriptionType(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteSubscriptionType(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *catalogHandler) listEvents(c *gin.Context) {
	upcoming, _ := strconv.ParseBool(c.DefaultQuery("upcoming", "false"))
	items, err := h.service.ListEvents(c.Request.Context(), upcoming)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *catalogHandler) getEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.service.GetEvent(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *catalogHandler) createEvent(c *gin.Context) {
	var req models.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	item, err := h.service.CreateEvent(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *catalogHandler) updateEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	item, err := h.service.UpdateEvent(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *catalogHandler) deleteEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteEvent(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type adminHandler struct {
	service AdminAPI
}

func (h *adminHandler) list(c *gin.Context) {
	admins, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": admins})
}

func (h *adminHandler) create(c *gin.Context) {
	actor, _ := currentAdmin(c)
	var req models.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	admin, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, admin)
}

func (h *adminHandler) delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, _ := currentAdmin(c)
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *adminHandler) profile(c *gin.Context) {
	actor, _ := currentAdmin(c)
	c.JSON(http.StatusOK, actor)
}

func (h *adminHandler) updateProfile(c *gin.Context) {
	actor, _ := currentAdmin(c)
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	admin, err := h.service.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, admin)
}
