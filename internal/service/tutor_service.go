package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// systemInstruction pins the assistant to its school support role.
const systemInstruction = `You are an AI Education Assistant for SMK LPPMRI 2 KEDUNGREJA.
You help students and teachers with their academic queries.
Keep answers concise, accurate, and supportive.
If context is provided, use it to answer the question.
Answer in Indonesian language unless asked otherwise.`

// apologyFallback is returned verbatim whenever the model call fails.
const apologyFallback = "Maaf, asisten AI sedang mengalami gangguan. Silakan coba lagi nanti."

type contentGenerator interface {
	GenerateContent(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// TutorService is a thin wrapper over the hosted language model. Failures
// never propagate: the caller always receives an answer string.
type TutorService struct {
	generator contentGenerator
	logger    *zap.Logger
}

// NewTutorService constructs a TutorService instance.
func NewTutorService(generator contentGenerator, logger *zap.Logger) *TutorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorService{generator: generator, logger: logger}
}

// GetResponse answers a prompt, optionally grounded in provided context.
func (s *TutorService) GetResponse(ctx context.Context, prompt, contextText string) string {
	content := prompt
	if contextText != "" {
		content = fmt.Sprintf("Context: %s\n\nQuestion: %s", contextText, prompt)
	}

	answer, err := s.generator.GenerateContent(ctx, systemInstruction, content)
	if err != nil {
		s.logger.Warn("tutor model call failed", zap.Error(err))
		return apologyFallback
	}
	return answer
}
