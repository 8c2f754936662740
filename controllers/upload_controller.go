package controller

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"leadnest/pipeline"
	"leadnest/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"
)

const keepAliveInterval = 15 * time.Second

type UploadController struct {
	Registry     *pipeline.Registry
	Orchestrator *pipeline.Orchestrator
	Logger       *log.Logger
}

func NewUploadController(registry *pipeline.Registry, orchestrator *pipeline.Orchestrator, logger *log.Logger) *UploadController {
	return &UploadController{
		Registry:     registry,
		Orchestrator: orchestrator,
		Logger:       logger,
	}
}

// UploadCSV accepts a multipart CSV file and starts a background import.
// The response carries the session id; clients follow progress over SSE
// or WebSocket. An optional ?limit=N caps how many data rows are taken.
func (uc *UploadController) UploadCSV(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "CSV file is required", err)
	}

	limit := 0
	raw := c.FormValue("limit")
	if raw == "" {
		raw = c.Query("limit")
	}
	if raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid limit", nil)
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open uploaded file", err)
	}
	defer file.Close()

	// The request body is gone once the handler returns, so the file is
	// buffered before the background run starts.
	content, err := io.ReadAll(file)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read uploaded file", err)
	}

	sessionID := uc.Registry.Create()
	uc.Logger.Printf("Upload session %s started: %s (%d bytes)", sessionID, fileHeader.Filename, len(content))

	go uc.Orchestrator.Run(context.Background(), sessionID, bytes.NewReader(content), limit)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"sessionId": sessionID,
	})
}

// GetUploadStatus returns the current snapshot without streaming.
func (uc *UploadController) GetUploadStatus(c *fiber.Ctx) error {
	snap, ok := uc.Registry.Get(c.Params("sessionId"))
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Upload session not found", nil)
	}
	return c.JSON(utils.SuccessResponse(snap))
}

// StreamUploadStatus streams progress snapshots as server-sent events.
// The stream ends after the terminal snapshot is delivered; keep-alive
// comments hold the connection open through idle stretches.
func (uc *UploadController) StreamUploadStatus(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")

	updates, cancel, err := uc.Registry.Subscribe(sessionID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Upload session not found", nil)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				payload, err := json.Marshal(snap)
				if err != nil {
					uc.Logger.Printf("Session %s: failed to encode snapshot: %v", sessionID, err)
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					// Client went away
					return
				}
				if snap.Status.Terminal() {
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// HandleUploadProgressWS mirrors the SSE stream over a WebSocket for
// clients that already hold a socket open.
func (uc *UploadController) HandleUploadProgressWS(c *websocket.Conn) {
	defer c.Close()

	sessionID := c.Query("sessionId")
	if sessionID == "" {
		sessionID = c.Params("sessionId")
	}

	updates, cancel, err := uc.Registry.Subscribe(sessionID)
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": "Upload session not found"})
		return
	}
	defer cancel()

	for snap := range updates {
		if err := c.WriteJSON(snap); err != nil {
			uc.Logger.Printf("Session %s: websocket write failed: %v", sessionID, err)
			return
		}
		if snap.Status.Terminal() {
			return
		}
	}
}
