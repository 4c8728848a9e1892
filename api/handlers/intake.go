package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/schema"
	"github.com/feichai0017/intake-processor/internal/service/intake"
	"github.com/feichai0017/intake-processor/pkg/converters"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

type IntakeHandler struct {
	service intake.IntakeProcessor
	logger  logger.Logger
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewIntakeHandler(service intake.IntakeProcessor, log logger.Logger) *IntakeHandler {
	return &IntakeHandler{
		service: service,
		logger:  log.Named("http"),
	}
}

// Health 健康检查
func (h *IntakeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Backend is working!"})
}

// ParsePDF 旧版接口: 三字段病人信息
func (h *IntakeHandler) ParsePDF(c *gin.Context) {
	h.legacy(c, schema.ProfileLegacy, models.MediaKindPDF, "extracted_data", "PDF processed successfully")
}

// ParseVoice 旧版接口: 三字段病人信息 (音频)
func (h *IntakeHandler) ParseVoice(c *gin.Context) {
	h.legacy(c, schema.ProfileLegacy, models.MediaKindAudio, "extracted_data", "Audio processed successfully")
}

func (h *IntakeHandler) ParsePDFForQuestions(c *gin.Context) {
	h.legacy(c, schema.ProfileMinimal, models.MediaKindPDF, "extracted_answers", "PDF processed successfully")
}

func (h *IntakeHandler) ParseAudioForQuestions(c *gin.Context) {
	h.legacy(c, schema.ProfileMinimal, models.MediaKindAudio, "extracted_answers", "Audio processed successfully")
}

func (h *IntakeHandler) ParsePDFForIntake(c *gin.Context) {
	h.legacy(c, schema.ProfileFull, models.MediaKindPDF, "extracted_answers", "PDF processed successfully")
}

func (h *IntakeHandler) ParseAudioForIntake(c *gin.Context) {
	h.legacy(c, schema.ProfileFull, models.MediaKindAudio, "extracted_answers", "Audio processed successfully")
}

func (h *IntakeHandler) legacy(c *gin.Context, profile schema.Profile, kind models.MediaKind, key, message string) {
	req, err := readUpload(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	req.Profile = profile
	req.Kind = kind

	result, err := h.service.Process(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": message,
		key:       result.Answers,
	})
}

// Process 处理上传文档, 媒体类别由文件推断
func (h *IntakeHandler) Process(c *gin.Context) {
	profile, err := schema.ParseProfile(c.Param("profile"))
	if err != nil {
		h.handleError(c, models.NewError(models.KindInputValidation, err, "unknown profile %q", c.Param("profile")))
		return
	}
	req, err := readUpload(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	req.Profile = profile

	result, err := h.service.Process(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	nested, _ := strconv.ParseBool(c.Query("nested"))
	out, err := converters.NewJSONConverter(nested).Convert(result.Document, string(result.Profile), result.Answers, result.Source, result.Elapsed)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetAnswers 下载归档的答案
func (h *IntakeHandler) GetAnswers(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		h.handleError(c, models.NewError(models.KindInputValidation, err, "invalid answer set id"))
		return
	}

	rec, err := h.service.GetAnswers(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("Answer set unavailable", logger.String("id", id), logger.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "answer set not found"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=answers_%s.json", id))
	c.JSON(http.StatusOK, rec)
}

// GetSchema 返回字段描述
func (h *IntakeHandler) GetSchema(c *gin.Context) {
	profile, err := schema.ParseProfile(c.Param("profile"))
	if err != nil {
		h.handleError(c, models.NewError(models.KindInputValidation, err, "unknown profile %q", c.Param("profile")))
		return
	}
	reg, err := h.service.Schema(profile)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":  profile,
		"sections": reg.Sections(),
		"fields":   reg.Fields(),
	})
}

// ListPatients 病人记录, 最新在前
func (h *IntakeHandler) ListPatients(c *gin.Context) {
	patients, err := h.service.ListPatients(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"patients": patients,
	})
}

func readUpload(c *gin.Context) (*intake.Request, error) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return nil, models.NewError(models.KindInputValidation, err, "missing multipart field \"file\"")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, models.NewError(models.KindInputValidation, err, "failed to read upload")
	}
	return &intake.Request{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// statusFor maps a pipeline error to an HTTP status and error kind.
func statusFor(err error) (int, string) {
	kind, ok := models.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal_error"
	}
	switch kind {
	case models.KindInputValidation:
		if errors.Is(err, models.ErrUnsupportedMedia) {
			return http.StatusUnsupportedMediaType, string(kind)
		}
		return http.StatusBadRequest, string(kind)
	case models.KindExtraction, models.KindTranscription:
		return http.StatusUnprocessableEntity, string(kind)
	case models.KindSchemaExtraction:
		return http.StatusBadGateway, string(kind)
	default:
		return http.StatusInternalServerError, string(kind)
	}
}

// handleError 统一错误处理
func (h *IntakeHandler) handleError(c *gin.Context, err error) {
	status, kind := statusFor(err)
	log := logger.FromContext(c.Request.Context(), h.logger)
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", fields...)
	} else {
		log.Warn("Request rejected", fields...)
	}

	message := err.Error()
	var ie *models.IntakeError
	if errors.As(err, &ie) && ie.Reason != "" {
		message = ie.Reason
	}
	c.JSON(status, ErrorResponse{Error: kind, Message: message})
}
