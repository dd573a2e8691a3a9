// Package server exposes the payment gate over HTTP: the 402 challenge,
// the confirm route, health and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiomint/tunegate/chain"
	"github.com/audiomint/tunegate/confirm"
	"github.com/audiomint/tunegate/logger"
	"github.com/audiomint/tunegate/music"
	"github.com/audiomint/tunegate/types"
)

// PaymentHeader is the inbound header carrying a base64 payment payload.
const PaymentHeader = "X-PAYMENT"

// Server wires the orchestrator into echo routes.
type Server struct {
	echo         *echo.Echo
	orchestrator *confirm.Orchestrator
	music        *music.Service
	chain        *chain.Config
	log          logger.Logger
	port         int
}

// New builds the HTTP server. The metrics route serves the default
// prometheus registry, which the metrics package registers into.
func New(orchestrator *confirm.Orchestrator, musicSvc *music.Service, chainCfg *chain.Config, log logger.Logger, port int) *Server {
	if log == nil {
		log = logger.NoopLogger{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:         e,
		orchestrator: orchestrator,
		music:        musicSvc,
		chain:        chainCfg,
		log:          log,
		port:         port,
	}

	e.POST("/entrypoints/music/invoke", s.handleInvoke)
	e.POST("/api/x402/confirm", s.handleConfirm)
	e.GET("/api/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start blocks serving HTTP until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info("http server listening", map[string]any{
		"addr":    addr,
		"network": s.chain.Network.String(),
	})
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// invokeRequest is the invoke route's body: the music input nested
// under "input", same envelope as the confirm route minus the header.
type invokeRequest struct {
	Input types.MusicInput `json:"input"`
}

// handleInvoke is the paywalled entry point. Without an X-PAYMENT
// header it answers 402 with the exact requirement for the requested
// duration; with one, it runs the full confirm pipeline inline.
func (s *Server) handleInvoke(c echo.Context) error {
	var body invokeRequest
	if err := c.Bind(&body); err != nil {
		return s.paymentError(c, types.NewPaymentErrorDetail(types.ErrInvalidJSON,
			"request body is not valid JSON", err.Error()))
	}
	input := body.Input

	header := c.Request().Header.Get(PaymentHeader)
	if header == "" {
		requirement := s.orchestrator.Requirements(s.resourceURL(c), input.Seconds)
		return c.JSON(http.StatusPaymentRequired, types.PaymentRequiredResponse{
			X402Version: types.X402Version,
			Accepts:     []types.PaymentRequirements{requirement},
			Error:       "payment required",
		})
	}

	req := types.ConfirmRequest{Input: input, PaymentHeader: header}
	resp, perr := s.orchestrator.Confirm(c.Request().Context(), req, s.resourceURL(c))
	if perr != nil {
		return s.paymentError(c, perr)
	}

	return c.JSON(http.StatusOK, types.InvokeResponse{
		Output: types.MusicOutput{
			TrackUrl:      resp.TrackUrl,
			RefinedPrompt: resp.RefinedPrompt,
		},
		Model: resp.Provider,
	})
}

// handleConfirm takes the payment header in the JSON body instead of a
// request header, for callers that already hold a signed authorization.
func (s *Server) handleConfirm(c echo.Context) error {
	var req types.ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return s.paymentError(c, types.NewPaymentErrorDetail(types.ErrInvalidJSON,
			"request body is not valid JSON", err.Error()))
	}

	resp, perr := s.orchestrator.Confirm(c.Request().Context(), req, s.resourceURL(c))
	if perr != nil {
		return s.paymentError(c, perr)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c echo.Context) error {
	status := s.music.GeneratorStatus()
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"network":   s.chain.Network.String(),
		"chainId":   s.chain.ChainID,
		"generator": status,
	})
}

// resourceURL reconstructs the canonical URL of the paid resource; it
// always points at the invoke route regardless of which route is
// handling the request, so challenge and verification agree.
func (s *Server) resourceURL(c echo.Context) string {
	scheme := c.Scheme()
	if proto := c.Request().Header.Get(echo.HeaderXForwardedProto); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s/entrypoints/music/invoke", scheme, c.Request().Host)
}

func (s *Server) paymentError(c echo.Context, perr *types.PaymentError) error {
	return c.JSON(statusFor(perr.Code), types.ErrorResponse{
		OK:      false,
		Code:    perr.Code,
		Message: perr.Message,
		Detail:  perr.Detail,
	})
}

// statusFor maps error kinds to HTTP statuses. Payment mismatches stay
// 402 so clients treat them as "pay correctly and retry"; INVALID_PRICE
// is a server misconfiguration, and post-verification failures are
// gateway-class.
func statusFor(code string) int {
	switch code {
	case types.ErrInvalidRequest, types.ErrInvalidJSON:
		return http.StatusBadRequest
	case types.ErrInvalidPaymentHeader, types.ErrUnsupportedScheme, types.ErrMissingSignature,
		types.ErrWrongNetwork, types.ErrWrongRecipient, types.ErrWrongAmount,
		types.ErrInvalidSignature, types.ErrVerifyFailed:
		return http.StatusPaymentRequired
	case types.ErrInvalidPrice:
		return http.StatusInternalServerError
	case types.ErrSettlementFailed:
		return http.StatusBadGateway
	case types.ErrMusicError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
