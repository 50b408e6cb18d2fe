package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"classroom-rollcall-go/app"
	"classroom-rollcall-go/bank"
	"classroom-rollcall-go/generator"
	"classroom-rollcall-go/models"
	"classroom-rollcall-go/roster"
	"classroom-rollcall-go/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxUploadSize bounds imported files.
const maxUploadSize = 10 << 20

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	Classroom *app.Classroom
	log       zerolog.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(classroom *app.Classroom, log zerolog.Logger) *APIHandler {
	return &APIHandler{
		Classroom: classroom,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, roster.ErrEmptyName),
		errors.Is(err, roster.ErrNoClass),
		errors.Is(err, bank.ErrEmptyContent),
		errors.Is(err, session.ErrInvalidPoints),
		errors.Is(err, app.ErrEmptyTopic):
		return http.StatusBadRequest
	case errors.Is(err, roster.ErrClassNotFound),
		errors.Is(err, roster.ErrStudentNotFound):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrLastClass),
		errors.Is(err, session.ErrNoStudents),
		errors.Is(err, session.ErrRoundInProgress),
		errors.Is(err, session.ErrNotRevealed),
		errors.Is(err, app.ErrNoActiveClass):
		return http.StatusConflict
	case errors.Is(err, generator.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) fail(c *gin.Context, err error) {
	h.failWith(c, statusFor(err), err)
}

func (h *APIHandler) failWith(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

// --- State Handlers ---

// GetState handles GET /api/state
func (h *APIHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Classroom.State())
}

// GetSummary handles GET /api/summary
func (h *APIHandler) GetSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.Classroom.Summary())
}

// ExportState handles GET /api/export
func (h *APIHandler) ExportState(c *gin.Context) {
	data, filename, err := h.Classroom.Export()
	if err != nil {
		h.fail(c, err)
		return
	}
	attachment(c, filename)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// --- Class Handlers ---

type createClassRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Activate    *bool  `json:"activate"` // nil activates the new class
}

// GetAllClasses handles GET /api/classes
func (h *APIHandler) GetAllClasses(c *gin.Context) {
	c.JSON(http.StatusOK, h.Classroom.Classes())
}

// AddClass handles POST /api/classes
func (h *APIHandler) AddClass(c *gin.Context) {
	var req createClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	activate := req.Activate == nil || *req.Activate
	clazz, err := h.Classroom.CreateClass(req.Name, req.Description, activate)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, clazz)
}

// DeleteClass handles DELETE /api/classes/:classId
func (h *APIHandler) DeleteClass(c *gin.Context) {
	if err := h.Classroom.DeleteClass(c.Param("classId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetActiveClass handles PUT /api/classes/:classId/active
func (h *APIHandler) SetActiveClass(c *gin.Context) {
	clazz, err := h.Classroom.SetActiveClass(c.Param("classId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, clazz)
}

// --- Student Handlers ---

type studentRequest struct {
	Name string `json:"name"`
}

// GetStudentsByClass handles GET /api/classes/:classId/students
func (h *APIHandler) GetStudentsByClass(c *gin.Context) {
	students, err := h.Classroom.Students(c.Param("classId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// AddStudent handles POST /api/classes/:classId/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	student, err := h.Classroom.AddStudent(c.Param("classId"), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, student)
}

// RenameStudent handles PUT /api/students/:studentId
func (h *APIHandler) RenameStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	student, err := h.Classroom.RenameStudent(c.Param("studentId"), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

// DeleteStudent handles DELETE /api/students/:studentId
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	if err := h.Classroom.DeleteStudent(c.Param("studentId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRankings handles GET /api/classes/:classId/rankings
func (h *APIHandler) GetRankings(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	clazz, ranked, err := h.Classroom.Rankings(c.Param("classId"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"class":    clazz,
		"rankings": ranked,
	})
}

// ExportRankings handles GET /api/classes/:classId/rankings.xlsx
func (h *APIHandler) ExportRankings(c *gin.Context) {
	classID := c.Param("classId")

	var buf bytes.Buffer
	if err := h.Classroom.WriteRankings(&buf, classID); err != nil {
		h.fail(c, err)
		return
	}
	attachment(c, "rankings_"+classID+".xlsx")
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// --- Import Handlers ---

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	// An empty classId imports into the active class.
	classID := c.PostForm("classId")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	h.log.Info().Str("file", header.Filename).Str("class_id", classID).Msg("received student import")

	var imported int
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		imported, err = h.Classroom.ImportStudentsFromExcel(classID, file)
	case ".txt", ".csv":
		var raw []byte
		raw, err = io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err == nil {
			imported, err = h.Classroom.ImportStudents(classID, string(raw))
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type, expected .txt, .csv or .xlsx"})
		return
	}
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			// Unreadable workbooks are client errors.
			h.failWith(c, http.StatusBadRequest, err)
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": imported,
		"classId":       classID,
	})
}

// ImportQuestions handles POST /api/import/questions
func (h *APIHandler) ImportQuestions(c *gin.Context) {
	var reader io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
			return
		}
		defer file.Close()
		reader = file
	}

	raw, err := io.ReadAll(io.LimitReader(reader, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading import: " + err.Error()})
		return
	}

	imported := h.Classroom.ImportQuestions(string(raw))
	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": len(imported),
		"questions":     imported,
	})
}

// QuestionTemplate handles GET /api/import/questions/template
func (h *APIHandler) QuestionTemplate(c *gin.Context) {
	attachment(c, bank.ImportTemplateName)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(bank.ImportTemplate))
}

// --- Question Handlers ---

type questionRequest struct {
	Content    string `json:"content"`
	Difficulty string `json:"difficulty"`
	Subject    string `json:"subject"`
}

type generateRequest struct {
	Topic      string `json:"topic"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
}

// GetAllQuestions handles GET /api/questions
func (h *APIHandler) GetAllQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, h.Classroom.Questions())
}

// AddQuestion handles POST /api/questions
func (h *APIHandler) AddQuestion(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	q, err := h.Classroom.AddQuestion(req.Content, models.Difficulty(req.Difficulty), req.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// DeleteQuestion handles DELETE /api/questions/:questionId
func (h *APIHandler) DeleteQuestion(c *gin.Context) {
	h.Classroom.DeleteQuestion(c.Param("questionId"))
	c.Status(http.StatusNoContent)
}

// GeneratorStatus handles GET /api/questions/generate/status
func (h *APIHandler) GeneratorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"available": h.Classroom.GeneratorAvailable()})
}

// GenerateQuestions handles POST /api/questions/generate
func (h *APIHandler) GenerateQuestions(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	difficulty := bank.ParseDifficulty(req.Difficulty)
	added, err := h.Classroom.GenerateQuestions(c.Request.Context(), req.Topic, req.Count, difficulty)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		h.failWith(c, status, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"importedCount": len(added),
		"questions":     added,
	})
}

// --- Ping Handler ---
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
