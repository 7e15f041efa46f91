package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubGenerator struct {
	answer     string
	err        error
	lastPrompt string
	lastSystem string
}

func (s *stubGenerator) GenerateContent(ctx context.Context, systemInstruction, prompt string) (string, error) {
	s.lastSystem = systemInstruction
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func TestTutorReturnsModelAnswer(t *testing.T) {
	gen := &stubGenerator{answer: "Fotosintesis adalah proses tumbuhan membuat makanan."}
	svc := NewTutorService(gen, zap.NewNop())

	answer := svc.GetResponse(context.Background(), "Apa itu fotosintesis?", "")
	assert.Equal(t, gen.answer, answer)
	assert.Equal(t, "Apa itu fotosintesis?", gen.lastPrompt)
	assert.Contains(t, gen.lastSystem, "SMK LPPMRI 2 KEDUNGREJA")
}

func TestTutorGroundsPromptInContext(t *testing.T) {
	gen := &stubGenerator{answer: "ok"}
	svc := NewTutorService(gen, zap.NewNop())

	svc.GetResponse(context.Background(), "Jelaskan bab 2", "materi jaringan komputer")
	assert.Contains(t, gen.lastPrompt, "Context: materi jaringan komputer")
	assert.Contains(t, gen.lastPrompt, "Question: Jelaskan bab 2")
}

func TestTutorFallsBackOnError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	svc := NewTutorService(gen, zap.NewNop())

	answer := svc.GetResponse(context.Background(), "Apa itu fotosintesis?", "")
	assert.Equal(t, apologyFallback, answer)
}
