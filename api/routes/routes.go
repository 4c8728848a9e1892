package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/intake-processor/api/handlers"
	"github.com/feichai0017/intake-processor/api/middleware"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, allowedOrigins []string, log logger.Logger) {
	// 全局中间件
	r.Use(middleware.RequestID(log))
	r.Use(middleware.CORS(allowedOrigins))

	r.GET("/", h.Intake.Health)

	// 兼容前端的旧路径
	r.POST("/parse-pdf", h.Intake.ParsePDF)
	r.POST("/parse-voice", h.Intake.ParseVoice)
	r.POST("/parse-pdf-for-questions", h.Intake.ParsePDFForQuestions)
	r.POST("/parse-audio-for-questions", h.Intake.ParseAudioForQuestions)
	r.POST("/parse-pdf-for-intake", h.Intake.ParsePDFForIntake)
	r.POST("/parse-audio-for-intake", h.Intake.ParseAudioForIntake)
	r.GET("/patients", h.Intake.ListPatients)

	// API 版本组
	v1 := r.Group("/api/v1")
	{
		v1.POST("/intake/:profile", h.Intake.Process)
		v1.GET("/intake/:id/answers", h.Intake.GetAnswers)
		v1.GET("/schema/:profile", h.Intake.GetSchema)
		v1.GET("/patients", h.Intake.ListPatients)
	}
}
