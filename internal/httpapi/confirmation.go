package httpapi

import (
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/medconfirm"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	deviceCookie    = "medconfirm_device"
	deviceCookieTTL = 365 * 24 * time.Hour
	runPath         = "/confirme/run"
)

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("confirme").Parse(pageHTML))

type pageData struct {
	PageID         string
	RunPath        string
	LoadingMessage string
	ErrorMessage   string
}

type runRequest struct {
	PageID string `json:"page_id" binding:"required,max=64"`
	URL    string `json:"url" binding:"required,max=8192"`
	Origin string `json:"origin" binding:"omitempty,max=512"`
}

type redirectInstruction struct {
	Target  string `json:"target"`
	AfterMS int64  `json:"after_ms"`
}

type navigation struct {
	ReplaceURL string               `json:"replace_url,omitempty"`
	Redirect   *redirectInstruction `json:"redirect,omitempty"`
}

type runResponse struct {
	medconfirm.Outcome
	RedirectAfterMS int64      `json:"redirect_after_ms,omitempty"`
	Navigation      navigation `json:"navigation"`
}

// instructionNavigator records navigation for the page to apply.
type instructionNavigator struct {
	mu  sync.Mutex
	nav navigation
}

func (n *instructionNavigator) ReplaceURL(cleanURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nav.ReplaceURL = cleanURL
	return nil
}

func (n *instructionNavigator) ScheduleRedirect(target string, after time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nav.Redirect = &redirectInstruction{Target: target, AfterMS: after.Milliseconds()}
	return nil
}

func (n *instructionNavigator) instructions() navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nav
}

type confirmationHandler struct {
	engine        *medconfirm.Engine
	logger        zerolog.Logger
	secureCookies bool
}

func newConfirmationHandler(engine *medconfirm.Engine, logger zerolog.Logger, secureCookies bool) *confirmationHandler {
	return &confirmationHandler{engine: engine, logger: logger, secureCookies: secureCookies}
}

// page renders the confirmation page. Every render is a new page instance.
func (h *confirmationHandler) page(c *gin.Context) {
	h.deviceID(c)

	c.Header("Cache-Control", "no-store")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	err := pageTemplate.Execute(c.Writer, pageData{
		PageID:         uuid.NewString(),
		RunPath:        runPath,
		LoadingMessage: "Confirmation in progress...",
		ErrorMessage:   "An error occurred while confirming your email. Please try again.",
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("render confirmation page")
	}
}

// run executes the flow for one page instance.
func (h *confirmationHandler) run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = req.Origin
	}

	latch, err := h.engine.PageLatch(req.PageID)
	if err != nil {
		if errors.Is(err, medconfirm.ErrInvalidPageID) {
			writeBindError(c, err)
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, errorBody("unavailable", "Service unavailable"))
		return
	}

	navigator := &instructionNavigator{}
	flow := h.engine.NewFlow(h.deviceID(c),
		medconfirm.WithLatch(latch),
		medconfirm.WithNavigator(navigator),
	)

	outcome, err := flow.Run(c.Request.Context(), req.URL, origin)
	if err != nil && !errors.Is(err, medconfirm.ErrFlowInProgress) {
		_ = c.Error(err)
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(runStatus(err), runResponse{
		Outcome:         outcome,
		RedirectAfterMS: outcome.RedirectAfter.Milliseconds(),
		Navigation:      navigator.instructions(),
	})
}

// deviceID returns the device cookie, issuing a new one when absent.
func (h *confirmationHandler) deviceID(c *gin.Context) string {
	if v, err := c.Cookie(deviceCookie); err == nil {
		if _, perr := uuid.Parse(v); perr == nil {
			return v
		}
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(deviceCookie, id, int(deviceCookieTTL.Seconds()), "/confirme", "", h.secureCookies, true)
	return id
}

func runStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, medconfirm.ErrUntrustedOrigin):
		return http.StatusForbidden
	case errors.Is(err, medconfirm.ErrConfirmationRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, medconfirm.ErrMissingToken), errors.Is(err, medconfirm.ErrMalformedToken):
		return http.StatusBadRequest
	case errors.Is(err, medconfirm.ErrExchangeTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, medconfirm.ErrLinkExpired):
		return http.StatusUnauthorized
	case errors.Is(err, medconfirm.ErrExchangeRejected):
		return http.StatusBadGateway
	case errors.Is(err, medconfirm.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, medconfirm.ErrFlowInProgress):
		return http.StatusConflict
	case errors.Is(err, medconfirm.ErrRecordStoreUnavailable),
		errors.Is(err, medconfirm.ErrLatchUnavailable),
		errors.Is(err, medconfirm.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
