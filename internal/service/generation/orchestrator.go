// Package generation runs one prompt through the model and wires its output
// into conversation memory and the generated code directory.
package generation

import (
	"codegen-app/internal/apperr"
	"codegen-app/internal/auth"
	"codegen-app/internal/codegen"
	"codegen-app/internal/logger"
	"codegen-app/internal/metrics"
	"codegen-app/internal/repository/db"
	"codegen-app/internal/service/chatmemory"
	"codegen-app/internal/service/llm"
	"codegen-app/internal/service/stream"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// AppLookup resolves applications
type AppLookup interface {
	GetApplication(ctx context.Context, id string) (*db.Application, error)
}

// Saver materializes a parsed result for an application
type Saver interface {
	Save(result codegen.Result, appID string) (string, error)
}

// Orchestrator validates generation requests and drives the stream collector
type Orchestrator struct {
	apps       AppLookup
	memory     *chatmemory.Store
	backend    llm.Backend
	saver      Saver
	windowSize int
}

// NewOrchestrator creates an Orchestrator. windowSize is the number of past
// turns sent to the model as context.
func NewOrchestrator(apps AppLookup, memory *chatmemory.Store, backend llm.Backend, saver Saver, windowSize int) *Orchestrator {
	return &Orchestrator{
		apps:       apps,
		memory:     memory,
		backend:    backend,
		saver:      saver,
		windowSize: windowSize,
	}
}

// Generate records the prompt as a user turn and returns the live event stream
// of the model's answer. Errors are returned only before streaming starts.
func (o *Orchestrator) Generate(ctx context.Context, appID, prompt string, caller auth.Identity) (<-chan stream.Event, error) {
	if appID == "" {
		return nil, fmt.Errorf("%w: application id is required", apperr.ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt must not be empty", apperr.ErrValidation)
	}

	app, err := o.apps.GetApplication(ctx, appID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to load application: %w", apperr.ErrStorage, err)
	}
	if !caller.Owns(app) {
		return nil, fmt.Errorf("%w: user %s may not generate for application %s", apperr.ErrAuthorization, caller.UserID, appID)
	}
	genType, err := codegen.ParseType(app.GenerationType)
	if err != nil {
		return nil, err
	}

	log := logger.Log.WithFields(logrus.Fields{"app_id": appID, "generation_type": genType.String()})

	// History is loaded before the new turn is stored so the prompt is not sent twice
	window := chatmemory.NewWindow(o.windowSize)
	loaded, err := o.memory.LoadRecentWindow(ctx, appID, o.windowSize, window)
	if err != nil {
		log.WithError(err).Warn("Failed to load chat history, continuing without it")
	}

	if _, err := o.memory.Append(ctx, appID, caller.UserID, db.TurnRoleUser, prompt); err != nil {
		return nil, err
	}

	systemPrompt, err := llm.SystemPrompt(genType)
	if err != nil {
		log.WithError(err).Warn("No system prompt for generation type")
	}

	req := llm.Request{
		SystemPrompt: systemPrompt,
		Messages:     append(window.Messages(), llm.Message{Role: llm.RoleUser, Content: prompt}),
	}

	collector := stream.NewCollector(o.memory, appID, caller.UserID,
		stream.WithGenerationType(genType.String()),
		stream.OnComplete(o.materialize(genType, appID)),
	)

	log.WithFields(logrus.Fields{"history": loaded, "prompt_length": len(prompt)}).Info("Starting generation")

	// The model call outlives the client; only forwarding stops on disconnect
	upstream, err := o.backend.Stream(context.WithoutCancel(ctx), req)
	if err != nil {
		log.WithError(err).Error("Failed to start generation")
		upstream = failedStream(err)
	}

	return collector.Run(ctx, upstream), nil
}

// materialize parses the finished response and writes it to the application's directory
func (o *Orchestrator) materialize(genType codegen.Type, appID string) stream.CompleteFunc {
	return func(ctx context.Context, text string) {
		log := logger.Log.WithFields(logrus.Fields{"app_id": appID, "generation_type": genType.String()})

		result, err := codegen.Parse(genType, text)
		if err != nil {
			metrics.MaterializeError(genType.String(), "parse")
			log.WithError(err).Warn("Generated response has no usable code")
			return
		}

		if _, err := o.saver.Save(result, appID); err != nil {
			metrics.MaterializeError(genType.String(), "save")
			log.WithError(err).Error("Failed to save generated code")
		}
	}
}

func failedStream(err error) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Err: err}
	close(ch)
	return ch
}
