package handlers

import (
	"bytes"
	"codegen-app/internal/auth"
	"codegen-app/internal/logger"
	"codegen-app/internal/service/stream"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

type fragmentPayload struct {
	D string `json:"d"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// GenerateHandler is the SSE endpoint streaming generated code for an application
func (h *Handlers) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	appID := r.PathValue("id")
	message := r.URL.Query().Get("message")
	if err := h.appValidator.ValidatePrompt(message); err != nil {
		h.sendServiceError(w, r, "Validation failed", err)
		return
	}

	// Check if response writer supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		auth.SendError(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	events, err := h.config.Orchestrator.Generate(r.Context(), appID, message, caller)
	if err != nil {
		h.sendServiceError(w, r, "Generation rejected", err)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logger.Log.WithFields(logrus.Fields{"app_id": appID, "user_id": caller.UserID})
	fragments := 0
	for ev := range events {
		var werr error
		switch ev.Kind {
		case stream.EventData:
			fragments++
			werr = writeEvent(w, "", fragmentPayload{D: ev.Data})
		case stream.EventDone:
			_, werr = io.WriteString(w, "event: done\ndata: \n\n")
		case stream.EventError:
			msg := "generation failed"
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			werr = writeEvent(w, "error", errorPayload{Error: msg})
		}
		if werr != nil {
			// The collector stops forwarding once the request context is cancelled
			log.WithError(werr).Debug("Failed to write event to client")
			continue
		}
		flusher.Flush()
	}

	log.WithField("fragments", fragments).Info("Generation stream closed")
}

// writeEvent writes one SSE event. Generated markup is sent unescaped.
func writeEvent(w io.Writer, event string, payload any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return err
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
