package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type scoreRequest struct {
	Points *int `json:"points"`
}

// GetSession handles GET /api/session
func (h *APIHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.Classroom.Session())
}

// Draw handles POST /api/session/draw. The roll runs in the background; its
// progress is pushed over /ws/session.
func (h *APIHandler) Draw(c *gin.Context) {
	if err := h.Classroom.Draw(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.Classroom.Session())
}

// Score handles POST /api/session/score
func (h *APIHandler) Score(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.Points == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "points is required"})
		return
	}

	res, err := h.Classroom.Score(*req.Points)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
