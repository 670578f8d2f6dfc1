package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type teamBody struct {
	Name string `json:"name"`
}

func (h *Handler) ListTeams(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	writePage(h, c, h.Store.ListTeams(userID))
}

func (h *Handler) CreateTeam(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var body teamBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	team, err := h.Store.CreateTeam(userID, body.Name, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "teams", "created", team)
	c.JSON(http.StatusOK, team)
}

func (h *Handler) GetTeam(c *gin.Context) {
	team, ok := h.Store.GetTeam(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *Handler) UpdateTeam(c *gin.Context) {
	var body teamBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	team, err := h.Store.UpdateTeam(c.Param("id"), body.Name)
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "teams", "updated", team)
	c.JSON(http.StatusOK, team)
}

func (h *Handler) DeleteTeam(c *gin.Context) {
	team, ok := h.Store.GetTeam(c.Param("id"))
	if !ok || !h.Store.DeleteTeam(team.ID) {
		notFound(c)
		return
	}
	h.publish(c, "teams", "deleted", team)
	c.Status(http.StatusNoContent)
}
