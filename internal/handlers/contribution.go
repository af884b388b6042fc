package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/inkwell-backend/internal/services"
	"github.com/yungbote/inkwell-backend/internal/types"
)

type ContributionHandler struct {
	contributionService services.ContributionService
}

func NewContributionHandler(contributionService services.ContributionService) *ContributionHandler {
	return &ContributionHandler{contributionService: contributionService}
}

func (ch *ContributionHandler) Create(c *gin.Context) {
	var req struct {
		Path     string      `json:"path"`
		Language string      `json:"language"`
		Brief    types.Brief `json:"brief"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	contribution, err := ch.contributionService.Create(c.Request.Context(), req.Path, req.Language, req.Brief)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contribution": contribution})
}

func (ch *ContributionHandler) List(c *gin.Context) {
	contributions, err := ch.contributionService.ListMine(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions": contributions})
}

func (ch *ContributionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution id"})
		return
	}
	contribution, err := ch.contributionService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contribution": contribution})
}

// progressRequest distinguishes absent fields from explicit nulls: a key
// present in the body patches the column, a missing key leaves it alone.
type progressRequest struct {
	Status           *string                   `json:"status"`
	CurrentStep      *string                   `json:"currentStep"`
	Brief            *types.Brief              `json:"brief"`
	InterviewHistory *[]types.InterviewQnA     `json:"interviewHistory"`
	CurrentQuestion  json.RawMessage           `json:"currentQuestion"`
	SourceDiscovery  *[]types.DiscoveredSource `json:"sourceDiscovery"`
	Outline          *types.GeneratedOutline   `json:"outline"`
	Agreement        *types.Agreement          `json:"agreement"`
}

func (ch *ContributionHandler) SaveProgress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution id"})
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	patch := services.ProgressPatch{
		Status:      req.Status,
		CurrentStep: req.CurrentStep,
		Brief:       req.Brief,
		Outline:     req.Outline,
		Agreement:   req.Agreement,
	}
	if req.InterviewHistory != nil {
		patch.InterviewHistory = *req.InterviewHistory
		patch.SetHistory = true
	}
	if len(req.CurrentQuestion) > 0 {
		patch.SetCurrentQuestion = true
		if string(req.CurrentQuestion) != "null" {
			var question types.GeneratedQuestion
			if err := json.Unmarshal(req.CurrentQuestion, &question); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid current question"})
				return
			}
			patch.CurrentQuestion = &question
		}
	}
	if req.SourceDiscovery != nil {
		patch.SourceDiscovery = *req.SourceDiscovery
		patch.SetSourceDiscovery = true
	}
	contribution, err := ch.contributionService.SaveProgress(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contribution": contribution})
}

func (ch *ContributionHandler) AppendAnswer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution id"})
		return
	}
	var req struct {
		QnA           types.InterviewQnA `json:"qna"`
		MaxQuestions  int                `json:"maxQuestions"`
		ForceComplete bool               `json:"forceComplete"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	contribution, err := ch.contributionService.AppendAnswer(c.Request.Context(), id, req.QnA, req.MaxQuestions, req.ForceComplete)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contribution": contribution})
}

func (ch *ContributionHandler) Publish(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution id"})
		return
	}
	var req struct {
		Title string `json:"title"`
		Slug  string `json:"slug"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	article, err := ch.contributionService.Publish(c.Request.Context(), id, req.Title, req.Slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"article": article})
}
