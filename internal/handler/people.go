package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spark-client-lite/internal/model"
	"spark-client-lite/internal/store"
)

type personBody struct {
	Emails      []string `json:"emails"`
	DisplayName *string  `json:"displayName"`
	NickName    *string  `json:"nickName"`
	FirstName   *string  `json:"firstName"`
	LastName    *string  `json:"lastName"`
	Avatar      *string  `json:"avatar"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListPeople requires an email or displayName filter like the real service.
func (h *Handler) ListPeople(c *gin.Context) {
	email, displayName := c.Query("email"), c.Query("displayName")
	if email == "" && displayName == "" {
		badRequest(c, "email or displayName is required")
		return
	}
	writePage(h, c, h.Store.ListPeople(email, displayName))
}

func (h *Handler) Me(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	person, ok := h.Store.GetPerson(userID)
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, person)
}

func (h *Handler) CreatePerson(c *gin.Context) {
	var body personBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	person, err := h.Store.CreatePerson(model.Person{
		Emails:      body.Emails,
		DisplayName: deref(body.DisplayName),
		FirstName:   deref(body.FirstName),
		LastName:    deref(body.LastName),
		Avatar:      deref(body.Avatar),
	}, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "people", "created", person)
	c.JSON(http.StatusOK, person)
}

func (h *Handler) GetPerson(c *gin.Context) {
	person, ok := h.Store.GetPerson(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, person)
}

func (h *Handler) UpdatePerson(c *gin.Context) {
	var body personBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	person, err := h.Store.UpdatePerson(c.Param("id"), store.PersonUpdate{
		Emails:      body.Emails,
		DisplayName: body.DisplayName,
		NickName:    body.NickName,
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		Avatar:      body.Avatar,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "people", "updated", person)
	c.JSON(http.StatusOK, person)
}

func (h *Handler) DeletePerson(c *gin.Context) {
	person, ok := h.Store.GetPerson(c.Param("id"))
	if !ok || !h.Store.DeletePerson(person.ID) {
		notFound(c)
		return
	}
	h.publish(c, "people", "deleted", person)
	c.Status(http.StatusNoContent)
}
