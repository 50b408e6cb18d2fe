package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API under /api and the cue stream at /ws/session.
func RegisterRoutes(router *gin.Engine, api *APIHandler, wsHandler *WSHandler) {
	g := router.Group("/api")
	{
		g.GET("/ping", PingHandler)
		g.GET("/state", api.GetState)
		g.GET("/summary", api.GetSummary)
		g.GET("/export", api.ExportState)

		// Class routes
		g.GET("/classes", api.GetAllClasses)
		g.POST("/classes", api.AddClass)
		g.DELETE("/classes/:classId", api.DeleteClass)
		g.PUT("/classes/:classId/active", api.SetActiveClass)
		g.GET("/classes/:classId/students", api.GetStudentsByClass)
		g.POST("/classes/:classId/students", api.AddStudent)
		g.GET("/classes/:classId/rankings", api.GetRankings)
		g.GET("/classes/:classId/rankings.xlsx", api.ExportRankings)

		// Student routes
		g.PUT("/students/:studentId", api.RenameStudent)
		g.DELETE("/students/:studentId", api.DeleteStudent)

		// Import routes
		g.POST("/import/students", api.ImportStudents)
		g.POST("/import/questions", api.ImportQuestions)
		g.GET("/import/questions/template", api.QuestionTemplate)

		// Question routes
		g.GET("/questions", api.GetAllQuestions)
		g.POST("/questions", api.AddQuestion)
		g.DELETE("/questions/:questionId", api.DeleteQuestion)
		g.GET("/questions/generate/status", api.GeneratorStatus)
		g.POST("/questions/generate", api.GenerateQuestions)

		// Session routes
		g.GET("/session", api.GetSession)
		g.POST("/session/draw", api.Draw)
		g.POST("/session/score", api.Score)
	}

	if wsHandler != nil {
		router.GET("/ws/session", wsHandler.HandleWebSocket)
	}
}
