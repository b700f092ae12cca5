// Package relay provides the streaming chat relay: it forwards IDE chat
// requests to the hosted gateway and relays the event stream back byte for
// byte, persisting each turn in a Merkle DAG along the way.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/papercomputeco/quill/pkg/assist"
	"github.com/papercomputeco/quill/pkg/gateway"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/sse"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/relay/header"
	"github.com/papercomputeco/quill/relay/worker"
)

const (
	// ChatStreamPath is the streaming chat route.
	ChatStreamPath = "/api/chat/stream"

	// AssistPath is the one-shot assist route; the task is a path parameter.
	AssistPath = "/api/assist/:task"

	msgInvalidBody = "Invalid request body."
	msgUnreadable  = "AI gateway returned an unreadable response."
	msgUnknownTask = "Unknown assist task."
	defaultOrigins = "*"
)

// Relay is the HTTP relay between the IDE and the chat gateway. It holds no
// per-request state; every request makes exactly one upstream attempt.
type Relay struct {
	config        Config
	workerPool    *worker.Pool
	gateway       *gateway.Client
	persona       *persona
	validate      *validator.Validate
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler

	// streams tracks relay goroutines still copying an upstream body, so
	// Close never closes the pool under a pending Enqueue.
	streams sync.WaitGroup

	// baseCtx parents every upstream stream request; Close cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a new Relay. The driver is injected to handle async
// persistence of relayed turns.
func New(config Config, driver storage.Driver, logger *slog.Logger) (*Relay, error) {
	p, err := newPersona(config.Persona)
	if err != nil {
		return nil, err
	}

	if config.AllowOrigins == "" {
		config.AllowOrigins = defaultOrigins
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
	}))

	// Compression buffers the whole body, which would defeat streaming.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == ChatStreamPath
		},
	}))

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Project:   config.Project,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		config:        config,
		workerPool:    wp,
		gateway:       gateway.New(config.Gateway, gateway.WithLogger(logger)),
		persona:       p,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		baseCtx:       baseCtx,
		cancel:        cancel,
	}

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	app.Post(ChatStreamPath, r.handleChatStream)
	app.Post(AssistPath, r.handleAssist)

	return r, nil
}

// Run starts the relay server on the configured listening address
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"upstream", r.config.Gateway.BaseURL,
		"model", r.config.Gateway.Model,
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"upstream", r.config.Gateway.BaseURL,
	)

	return r.server.Listener(listener)
}

// Close shuts down the relay. Streams still in flight are aborted and are not
// stored; the worker pool drains the turns already queued.
func (r *Relay) Close() error {
	// A stalled upstream would otherwise hold its connection open and block
	// both Shutdown and the stream wait.
	r.cancel()
	err := r.server.Shutdown()
	r.streams.Wait()
	r.workerPool.Close()
	return err
}

// handleChatStream relays one chat request as an event stream.
func (r *Relay) handleChatStream(c *fiber.Ctx) error {
	startTime := time.Now()

	// The credential check comes first so a misconfigured relay never
	// reaches the network.
	if err := r.config.Gateway.Validate(); err != nil {
		r.logger.Error("gateway not configured", "error", err)
		return r.sendError(c, err)
	}

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: msgInvalidBody})
	}
	if err := r.validate.Struct(req); err != nil {
		r.logger.Debug("rejected chat request", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: msgInvalidBody})
	}

	messages, err := r.upstreamMessages(&req)
	if err != nil {
		r.logger.Error("failed to build upstream messages", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	r.logger.Debug("relaying chat request",
		"message_count", len(req.Messages),
		"language", req.Language,
	)

	// fasthttp recycles its RequestCtx after the handler returns while the
	// body is still streaming, so the upstream request hangs off the relay's
	// own context and is cancelled when fasthttp closes the body stream.
	streamCtx, cancel := context.WithCancel(r.baseCtx)
	httpResp, err := r.gateway.Stream(streamCtx, messages)
	if err != nil {
		cancel()
		return r.sendError(c, err)
	}

	r.headerHandler.SetClientResponseHeaders(c, httpResp)

	// io.Pipe gives direct backpressure: pw.Write blocks until fasthttp has
	// read the chunk, and fasthttp flushes every chunk to the socket. The
	// internal buffering of SetBodyStreamWriter would hold the whole stream
	// in memory instead.
	pr, pw := io.Pipe()
	r.streams.Add(1)
	go r.relayStream(httpResp, pw, &req, startTime)

	// Unknown size (-1) selects chunked transfer encoding.
	c.Context().Response.SetBodyStream(&cancelOnClose{PipeReader: pr, cancel: cancel}, -1)
	return nil
}

// cancelOnClose aborts the upstream request once fasthttp is done with the
// body stream, whether the client read it all or went away.
type cancelOnClose struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	c.cancel()
	return c.PipeReader.Close()
}

// relayStream copies the upstream body into the pipe verbatim, decoding it
// on the side, and enqueues the turn for storage once the stream ends.
func (r *Relay) relayStream(httpResp *http.Response, pw *io.PipeWriter, req *llm.ChatRequest, startTime time.Time) {
	defer r.streams.Done()
	defer httpResp.Body.Close()

	tr := sse.NewTeeReader(httpResp.Body, pw, sse.WithLogger(r.logger))
	if err := tr.Drain(); err != nil {
		// Either the upstream failed mid-stream or the client went away.
		// The turn is incomplete and is not stored.
		r.logger.Warn("stream relay aborted",
			"error", err,
			"relayed_chars", len(tr.Decoder().Result()),
		)
		pw.CloseWithError(err)
		return
	}
	pw.Close()

	dec := tr.Decoder()
	r.logger.Debug("streaming complete",
		"state", dec.State().String(),
		"dropped_frames", dec.Dropped(),
		"duration", time.Since(startTime),
	)

	r.workerPool.Enqueue(worker.Job{
		Turn: llm.ConversationTurn{
			Model:    r.gateway.Model(),
			Language: req.Language,
			Messages: req.Messages,
			Response: dec.Result(),
			Complete: dec.Done(),
		},
		Path:          ChatStreamPath,
		StartedAt:     startTime,
		CompletedAt:   time.Now(),
		DroppedFrames: dec.Dropped(),
	})
}

// upstreamMessages prepends the persona and attaches images positionally.
func (r *Relay) upstreamMessages(req *llm.ChatRequest) ([]llm.UpstreamMessage, error) {
	system, err := r.persona.render(req.Language)
	if err != nil {
		return nil, err
	}

	out := make([]llm.UpstreamMessage, 0, len(req.Messages)+1)
	out = append(out, llm.NewTextMessage(llm.RoleSystem, system).ToUpstream(""))
	for i, msg := range req.Messages {
		out = append(out, msg.ToUpstream(req.ImageFor(i)))
	}
	return out, nil
}

// handleAssist runs one assist task and returns its JSON result.
func (r *Relay) handleAssist(c *fiber.Ctx) error {
	task, err := assist.ParseTask(c.Params("task"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: msgUnknownTask})
	}

	var in assist.Input
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: msgInvalidBody})
	}
	if err := assist.Validate(task, in); err != nil {
		r.logger.Debug("rejected assist request", "task", task, "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: msgInvalidBody})
	}

	out, err := assist.Run(c.UserContext(), r.gateway, task, in)
	if err != nil {
		var perr *assist.ParseError
		if errors.As(err, &perr) {
			r.logger.Warn("unreadable assist reply", "task", task, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: msgUnreadable})
		}
		return r.sendError(c, err)
	}

	return c.JSON(out)
}

// sendError maps a gateway error to its client-facing status and message.
func (r *Relay) sendError(c *fiber.Ctx, err error) error {
	status := gateway.HTTPStatus(err)
	r.logger.Warn("gateway request failed", "status", status, "error", err)
	return c.Status(status).JSON(llm.ErrorResponse{Error: gateway.PublicMessage(err)})
}
