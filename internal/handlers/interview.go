package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/inkwell-backend/internal/requestdata"
	"github.com/yungbote/inkwell-backend/internal/services"
	"github.com/yungbote/inkwell-backend/internal/types"
)

type InterviewHandler struct {
	quotaService      services.QuotaService
	interviewService  services.InterviewService
	outlineService    services.OutlineService
	sourceService     services.SourceDiscoveryService
	assistanceService services.AssistanceService
}

func NewInterviewHandler(quotaService services.QuotaService, interviewService services.InterviewService, outlineService services.OutlineService, sourceService services.SourceDiscoveryService, assistanceService services.AssistanceService) *InterviewHandler {
	return &InterviewHandler{
		quotaService:      quotaService,
		interviewService:  interviewService,
		outlineService:    outlineService,
		sourceService:     sourceService,
		assistanceService: assistanceService,
	}
}

// consumeQuota gates one AI call. On denial it writes the 429 response with
// the usage block the wizard renders and returns false.
func (ih *InterviewHandler) consumeQuota(c *gin.Context, service, action string) bool {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	decision, err := ih.quotaService.CheckAndConsume(c.Request.Context(), rd.UserID, service, action, rd.Email)
	if err != nil {
		respondError(c, err)
		return false
	}
	if !decision.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "daily limit reached",
			"usage": gin.H{
				"remaining": decision.Remaining,
				"limit":     decision.Limit,
				"resetAt":   decision.ResetAt,
			},
		})
		return false
	}
	return true
}

func (ih *InterviewHandler) GenerateQuestions(c *gin.Context) {
	var req struct {
		Brief            types.Brief          `json:"brief"`
		InterviewHistory []types.InterviewQnA `json:"interviewHistory"`
		Language         string               `json:"language"`
		MaxQuestions     int                  `json:"maxQuestions"`
		ForceComplete    bool                 `json:"forceComplete"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	maxQuestions := req.MaxQuestions
	if maxQuestions <= 0 || maxQuestions > services.DefaultMaxQuestions {
		maxQuestions = services.DefaultMaxQuestions
	}
	questionNumber := len(req.InterviewHistory) + 1
	// Cap-reached and force-complete requests short-circuit without a model
	// call, so they are free.
	if !req.ForceComplete && questionNumber <= maxQuestions {
		if !ih.consumeQuota(c, types.ServiceGemini, types.ActionQuestionGeneration) {
			return
		}
	}
	batch, err := ih.interviewService.GenerateQuestions(c.Request.Context(), services.QuestionGenInput{
		Brief:          req.Brief,
		History:        req.InterviewHistory,
		QuestionNumber: questionNumber,
		MaxQuestions:   maxQuestions,
		ForceComplete:  req.ForceComplete,
		Language:       req.Language,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch})
}

func (ih *InterviewHandler) FindAssistance(c *gin.Context) {
	var req struct {
		Type     string                  `json:"type"`
		Question types.GeneratedQuestion `json:"question"`
		Brief    types.Brief             `json:"brief"`
		Draft    string                  `json:"draft"`
		Language string                  `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !ih.consumeQuota(c, types.ServiceGemini, types.ActionAnswerAssistance) {
		return
	}
	suggestions, err := ih.assistanceService.FindAssistance(c.Request.Context(), services.AssistanceInput{
		Type:     req.Type,
		Question: req.Question,
		Brief:    req.Brief,
		Draft:    req.Draft,
		Language: req.Language,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (ih *InterviewHandler) GenerateAnswerSuggestions(c *gin.Context) {
	var req struct {
		Question         types.GeneratedQuestion `json:"question"`
		Brief            types.Brief             `json:"brief"`
		InterviewHistory []types.InterviewQnA    `json:"interviewHistory"`
		Language         string                  `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !ih.consumeQuota(c, types.ServiceGemini, types.ActionAnswerAssistance) {
		return
	}
	answers, err := ih.assistanceService.GenerateAnswerSuggestions(c.Request.Context(), req.Question, req.Brief, req.InterviewHistory, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": answers})
}

func (ih *InterviewHandler) GenerateAnswerFromSources(c *gin.Context) {
	var req struct {
		Question types.GeneratedQuestion  `json:"question"`
		Sources  []types.DiscoveredSource `json:"sources"`
		Language string                   `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Sources) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one source is required"})
		return
	}
	if !ih.consumeQuota(c, types.ServiceGemini, types.ActionAnswerFromSources) {
		return
	}
	answer, err := ih.assistanceService.GenerateAnswerFromSources(c.Request.Context(), req.Question, req.Sources, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (ih *InterviewHandler) GenerateOutline(c *gin.Context) {
	var req struct {
		Brief            types.Brief              `json:"brief"`
		InterviewHistory []types.InterviewQnA     `json:"interviewHistory"`
		Sources          []types.DiscoveredSource `json:"sources"`
		Language         string                   `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !ih.consumeQuota(c, types.ServiceGemini, types.ActionOutlineGeneration) {
		return
	}
	outline, err := ih.outlineService.GenerateOutline(c.Request.Context(), services.OutlineGenInput{
		Brief:    req.Brief,
		History:  req.InterviewHistory,
		Sources:  req.Sources,
		Language: req.Language,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outline": outline})
}

func (ih *InterviewHandler) DiscoverSources(c *gin.Context) {
	var req struct {
		Brief            types.Brief          `json:"brief"`
		InterviewHistory []types.InterviewQnA `json:"interviewHistory"`
		Language         string               `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !ih.consumeQuota(c, types.ServicePerplexity, types.ActionSourceDiscovery) {
		return
	}
	sources, err := ih.sourceService.DiscoverSources(c.Request.Context(), req.Brief, req.InterviewHistory, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}
