package handlers

import (
	"github.com/feichai0017/intake-processor/internal/service/intake"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

type Handlers struct {
	Intake *IntakeHandler
}

func NewHandlers(
	intakeService intake.IntakeProcessor,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Intake: NewIntakeHandler(intakeService, logger),
	}
}
