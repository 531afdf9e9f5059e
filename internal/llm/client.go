package llm

import (
	"context"
	"errors"
	"fmt"
)

// LLMClient define la interfaz para generar respuestas con un LLM.
type LLMClient interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest es un turno único: mensaje, instrucción de sistema opcional y modelo.
type GenerateRequest struct {
	Message      string
	SystemPrompt string
	Model        string
}

var (
	ErrInvalidInput = errors.New("llm: message must not be blank")
	ErrTimeout      = errors.New("llm: request timed out")
)

// UpstreamError representa una respuesta no 2xx del proveedor.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm upstream error: status=%d body=%s", e.Status, e.Body)
}

// TransportError envuelve fallas de red o de decodificación.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
