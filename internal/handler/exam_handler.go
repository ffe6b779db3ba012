package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/proctorly/examroom/internal/middleware"
	"github.com/proctorly/examroom/internal/model"
	"github.com/proctorly/examroom/internal/response"
	"github.com/proctorly/examroom/internal/service"
	"github.com/proctorly/examroom/internal/validator"
)

// ExamHandler serves the exam-taking REST surface.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// Join godoc
// POST /api/v1/exams/:exam_id/join
// Creates a proctoring session and returns its token.
func (h *ExamHandler) Join(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	join, err := h.examService.Join(c.Request.Context(), examID)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, join)
}

// Paper godoc
// GET /api/v1/exams/:exam_id/paper
// Returns the exam metadata and question sequence for the session.
func (h *ExamHandler) Paper(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.examService.Paper(c.Request.Context(), examID)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// Submit godoc
// POST /api/v1/exams/:exam_id/submit
// Scores the submitted answer map and finalizes the session.
func (h *ExamHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.examService.Submit(c.Request.Context(), claims.SessionID, examID, req.Answers)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

func (h *ExamHandler) failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusNotFound, response.ErrNoQuestions)
	case errors.Is(err, service.ErrSessionTerminated):
		response.Fail(c, http.StatusForbidden, response.ErrSessionTerminated)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
