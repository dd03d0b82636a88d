// Package server exposes the exporter over HTTP so a page's download
// button can trigger an export and receive the PDF as an attachment.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	briefexport "github.com/porticus-lab/go-brief-export"
)

// Output is a finished export.
type Output interface {
	Bytes() []byte
	Filename() string
	Mode() briefexport.Mode
	Attempts() []briefexport.Attempt
}

// Exporter runs exports for the server.
type Exporter interface {
	Export(ctx context.Context, rawURL string, req briefexport.Request) (Output, error)
	Exporting() bool
}

type exporterAdapter struct {
	e *briefexport.Exporter
}

// FromExporter adapts e for [New].
func FromExporter(e *briefexport.Exporter) Exporter {
	return exporterAdapter{e: e}
}

func (a exporterAdapter) Export(ctx context.Context, rawURL string, req briefexport.Request) (Output, error) {
	return a.e.ExportURL(ctx, rawURL, req)
}

func (a exporterAdapter) Exporting() bool {
	return a.e.State().IsExporting()
}

// ExportRequest is the body of POST /api/exports.
type ExportRequest struct {
	URL       string           `json:"url"`
	ElementID string           `json:"elementId"`
	Filename  string           `json:"filename"`
	Strategy  briefexport.Mode `json:"strategy"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server serves the export API.
type Server struct {
	app *fiber.App
	exp Exporter
	log *zap.Logger
	// base is cancelled when Run shuts down, aborting running exports.
	base context.Context
}

// New builds the HTTP application around exp.
func New(exp Exporter, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{exp: exp, log: log, base: context.Background()}
	s.app = fiber.New(fiber.Config{
		AppName:               "briefexport",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Content-Type",
		ExposeHeaders: "Content-Disposition,X-Export-Strategy,X-Export-Attempts",
	}))
	s.app.Use(s.accessLog)

	s.app.Get("/healthz", s.health)
	api := s.app.Group("/api/exports")
	api.Post("/", s.export)
	api.Get("/status", s.status)
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.base = base

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(addr) }()
	s.log.Info("server listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.log.Info("server shutting down")
		cancel()
		return s.app.ShutdownWithTimeout(10 * time.Second)
	}
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	s.log.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
	)
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"exporting": s.exp.Exporting()})
}

func (s *Server) export(c *fiber.Ctx) error {
	var in ExportRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := validateURL(in.URL); err != nil {
		return err
	}
	// Loading the page can take long; answer busy callers before that.
	if s.exp.Exporting() {
		return briefexport.ErrExportInProgress
	}

	// fasthttp does not report client disconnects, so exports are bound to
	// the server's lifetime instead of the request.
	out, err := s.exp.Export(s.base, in.URL, briefexport.Request{
		ElementID: in.ElementID,
		Filename:  in.Filename,
		Mode:      in.Strategy,
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, contentDisposition(out.Filename()))
	c.Set("X-Export-Strategy", out.Mode().String())
	c.Set("X-Export-Attempts", formatAttempts(out.Attempts()))
	return c.Send(out.Bytes())
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("url %q is not an absolute http(s) URL", raw))
	}
	return nil
}

// contentDisposition builds an attachment header. Names with non-ASCII
// characters get an ASCII fallback plus an RFC 6266 filename* parameter.
func contentDisposition(name string) string {
	ascii := true
	fallback := []rune(name)
	for i, r := range fallback {
		if r > unicode.MaxASCII || r == '"' || r == '\\' {
			fallback[i] = '_'
			ascii = false
		}
	}
	h := fmt.Sprintf(`attachment; filename="%s"`, string(fallback))
	if !ascii {
		h += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return h
}

// formatAttempts renders attempts as "print:failed,vector:success".
func formatAttempts(attempts []briefexport.Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = a.Mode.String() + ":" + a.Outcome.String()
	}
	return strings.Join(parts, ",")
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code, kind, msg := classify(err)
	if code >= fiber.StatusInternalServerError {
		s.log.Error("export request failed", zap.Int("status", code), zap.Error(err))
	}
	return c.Status(code).JSON(ErrorResponse{Error: kind, Message: msg})
}

// classify maps an error to its HTTP status, error kind and message.
func classify(err error) (int, string, string) {
	var (
		fe        *fiber.Error
		exhausted *briefexport.ExhaustedError
	)
	switch {
	case errors.As(err, &fe):
		return fe.Code, "request", fe.Message
	case errors.Is(err, briefexport.ErrInvalidMode):
		return fiber.StatusBadRequest, "invalid_mode", err.Error()
	case errors.Is(err, briefexport.ErrElementNotFound):
		return fiber.StatusNotFound, "element_not_found", err.Error()
	case errors.Is(err, briefexport.ErrExportInProgress):
		return fiber.StatusConflict, "export_in_progress", err.Error()
	case errors.As(err, &exhausted):
		return fiber.StatusBadGateway, "exhausted", exhausted.Message()
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "timeout", "the export timed out"
	}
	return fiber.StatusInternalServerError, "internal", err.Error()
}
