// Package api is the HTTP surface of llamad: the /generate and /about
// routes, request validation, and the translation of every failure into
// the uniform error envelope.
package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/llamad-dev/llamad/internal/config"
	"github.com/llamad-dev/llamad/internal/diag"
	"github.com/llamad-dev/llamad/internal/inference"
	"github.com/llamad-dev/llamad/internal/logger"
	"github.com/llamad-dev/llamad/internal/webui"
)

// Server holds the process-wide request-handling state. The engine slot is
// written exactly once, during startup, before the listener accepts
// traffic; requests only ever read it.
type Server struct {
	engine atomic.Value // inference.Engine

	env         string
	device      string
	roundDigits int
	log         logger.Logger
}

func NewServer(cfg config.Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		env:         cfg.Env,
		device:      cfg.Device,
		roundDigits: cfg.RoundDigits,
		log:         log,
	}
}

// SetEngine installs the loaded model pair. Called once after Loader.Load
// succeeds; until then /generate answers 503.
func (s *Server) SetEngine(eng inference.Engine) {
	s.engine.Store(eng)
}

func (s *Server) currentEngine() inference.Engine {
	if v := s.engine.Load(); v != nil {
		return v.(inference.Engine)
	}
	return nil
}

var staticHandler = http.StripPrefix("/static/", http.FileServer(webui.StaticFS()))

func (s *Server) Register(e *echo.Echo) {
	e.POST("/generate", s.handleGenerate)
	e.GET("/about", s.handleAbout)
	e.GET("/static/*", s.handleStatic)
}

func (s *Server) handleGenerate(c *echo.Context) (err error) {
	log := s.log.With("request_id", uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			err = s.writeFailure(c, log, newInternalError(fmt.Errorf("panic: %v", r)))
		}
	}()

	req, verr := decodeGenerateRequest(c.Request().Body)
	if verr != nil {
		return s.writeFailure(c, log, verr)
	}
	log.Info("generate called", "prompt_len", len(req.Prompt))

	eng := s.currentEngine()
	if eng == nil {
		return s.writeFailure(c, log, newNotReadyError())
	}

	result, genErr := eng.Generate(c.Request().Context(), []string{req.Prompt}, inference.Params(req.GenerationParams))
	if genErr != nil {
		return s.writeFailure(c, log, newInferenceError(genErr))
	}

	logits := make([]float64, len(result.Scores))
	for i, v := range result.Scores {
		logits[i] = roundTo(v, s.roundDigits)
	}

	log.Info("generate done", "texts", len(result.Texts), "tokens", len(logits))
	return c.JSON(http.StatusOK, GenerateResponse{
		Results: GenerateResults{
			Text:   result.Texts,
			Logits: logits,
		},
	})
}

func (s *Server) handleAbout(c *echo.Context) error {
	return c.JSON(http.StatusOK, AboutResponse{
		Env:    s.env,
		Device: s.device,
		Report: diag.Collect(c.Request().Context()),
	})
}

func (s *Server) handleStatic(c *echo.Context) error {
	staticHandler.ServeHTTP(c.Response(), c.Request())
	return nil
}

// writeFailure is the error translator: any failure, typed or not, leaves
// as the error envelope with its mapped status code. Full detail is logged
// server-side only.
func (s *Server) writeFailure(c *echo.Context, log logger.Logger, err error) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = newInternalError(err)
	}

	if apiErr.Status() >= http.StatusInternalServerError {
		log.Error("request failed", "kind", apiErr.Kind.String(), "detail", apiErr.Error())
	} else {
		log.Warn("request rejected", "kind", apiErr.Kind.String(), "message", apiErr.Message)
	}

	return c.JSON(apiErr.Status(), ErrorResponse{
		Error:   true,
		Message: apiErr.Message,
	})
}

// roundTo rounds v to the given number of decimal digits for transport.
func roundTo(v float64, digits int) float64 {
	scale := math.Pow10(digits)
	return math.Round(v*scale) / scale
}
