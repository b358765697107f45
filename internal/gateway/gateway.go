// Package gateway exposes the checkout engine over HTTP. All engine state
// transitions happen here, explicitly, on caller requests; the gateway holds
// no derived state beyond the per-session artifacts it has built.
package gateway

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/paygate/internal/artifact"
	"github.com/terminal-bench/paygate/internal/checkout"
	"github.com/terminal-bench/paygate/internal/policy"
	"github.com/terminal-bench/paygate/internal/quote"
	"github.com/terminal-bench/paygate/internal/session"
	"github.com/terminal-bench/paygate/pkg/messaging"
	"github.com/terminal-bench/paygate/pkg/money"
)

// Config holds gateway configuration.
type Config struct {
	JWTSecret       string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Gateway routes checkout requests to the engine.
type Gateway struct {
	router      *gin.Engine
	store       *policy.Store
	sessions    session.Store
	artifacts   session.ArtifactStore
	builder     *artifact.Builder
	msgClient   *messaging.Client
	now         func() time.Time
	jwtSecret   string
	rateLimiter *RateLimiter

	wsMu      sync.RWMutex
	wsClients map[uuid.UUID]*WSClient
}

// Deps wires the gateway's collaborators. Clock is optional and defaults to
// time.Now; tests inject a fixed clock. Artifacts normally points at the same
// store as Sessions so both survive a replica switch together.
type Deps struct {
	Policies  *policy.Store
	Sessions  session.Store
	Artifacts session.ArtifactStore
	Builder   *artifact.Builder
	MsgClient *messaging.Client
	Clock     func() time.Time
}

// NewGateway creates the gateway and registers its routes.
func NewGateway(cfg Config, deps Deps) *Gateway {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	g := &Gateway{
		router:    gin.Default(),
		store:     deps.Policies,
		sessions:  deps.Sessions,
		artifacts: deps.Artifacts,
		builder:   deps.Builder,
		msgClient: deps.MsgClient,
		now:       clock,
		jwtSecret: cfg.JWTSecret,
		rateLimiter: &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    cfg.RateLimitMax,
			window:   cfg.RateLimitWindow,
		},
		wsClients: make(map[uuid.UUID]*WSClient),
	}

	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(g.rateLimitMiddleware())
	g.router.Use(g.tracingMiddleware())

	g.router.GET("/health", g.healthCheck)

	v1 := g.router.Group("/api/v1")
	{
		// Policy table export; read-only, no derived fields
		v1.GET("/policies", g.listPolicies)
		v1.GET("/policies/table", g.renderPolicies)

		// Checkout sessions
		v1.POST("/sessions", g.authMiddleware(), g.createSession)
		v1.GET("/sessions/:id", g.authMiddleware(), g.getSession)
		v1.PUT("/sessions/:id/amounts", g.authMiddleware(), g.setAmounts)
		v1.PUT("/sessions/:id/rate", g.authMiddleware(), g.setRate)
		v1.POST("/sessions/:id/quote/lock", g.authMiddleware(), g.lockQuote)
		v1.POST("/sessions/:id/quote/reset", g.authMiddleware(), g.resetQuote)
		v1.POST("/sessions/:id/fallback/toggle", g.authMiddleware(), g.toggleFallback)
		v1.POST("/sessions/:id/evaluate", g.authMiddleware(), g.evaluate)
		v1.GET("/sessions/:id/artifact", g.authMiddleware(), g.getArtifact)
		v1.GET("/sessions/:id/quote/stream", g.authMiddleware(), g.streamQuote)
	}
}

// Start runs the HTTP server.
func (g *Gateway) Start(addr string) error {
	return g.router.Run(addr)
}

// Handler exposes the router for tests and server wiring.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Middleware

func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !g.rateLimiter.Allow(ip, g.now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (g *Gateway) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

// Handlers

func (g *Gateway) healthCheck(c *gin.Context) {
	health := gin.H{"status": "healthy", "policies": g.store.Len()}
	if g.msgClient != nil {
		health["nats_connected"] = g.msgClient.IsConnected()
		health["nats_reconnects"] = g.msgClient.Reconnects()
	}
	c.JSON(http.StatusOK, health)
}

func (g *Gateway) listPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rows": g.store.Rows()})
}

func (g *Gateway) renderPolicies(c *gin.Context) {
	c.String(http.StatusOK, artifact.RenderPolicyTable(g.store.Rows()))
}

// CreateSessionRequest establishes a checkout context. Amounts are strings to
// keep decimal precision through JSON.
type CreateSessionRequest struct {
	Jurisdiction     string                    `json:"jurisdiction" binding:"required"`
	Merchant         string                    `json:"merchant" binding:"required"`
	MerchantCategory string                    `json:"merchant_category"`
	Instruments      []string                  `json:"instruments" binding:"required"`
	LedgerAmount     string                    `json:"ledger_amount"`
	LedgerIssuerID   string                    `json:"ledger_issuer_id"`
	AssetAmount      string                    `json:"asset_amount"`
	AssetChain       string                    `json:"asset_chain"`
	CardAmount       string                    `json:"card_amount"`
	CardBrand        string                    `json:"card_brand"`
	CurrentRate      string                    `json:"current_rate" binding:"required"`
	HoldWindowSec    int64                     `json:"hold_window_sec"`
	SlippageBoundBps int64                     `json:"slippage_bound_bps"`
	AutoFallback     bool                      `json:"auto_fallback"`
	Refs             checkout.CounterpartyRefs `json:"refs"`
}

func (g *Gateway) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ledger, err := parseAmount(req.LedgerAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ledger_amount"})
		return
	}
	card, err := parseAmount(req.CardAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card_amount"})
		return
	}
	asset, err := parseQuantity(req.AssetAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset_amount"})
		return
	}
	rate, err := money.NewRate(req.CurrentRate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid current_rate"})
		return
	}

	now := g.now()
	snap := g.store.Resolve(req.Jurisdiction, req.Instruments, req.MerchantCategory, now)

	ctx, err := checkout.New(snap, checkout.Params{
		SessionID:        uuid.New().String(),
		Jurisdiction:     req.Jurisdiction,
		Merchant:         req.Merchant,
		MerchantCategory: req.MerchantCategory,
		LedgerAmount:     ledger,
		LedgerIssuerID:   req.LedgerIssuerID,
		AssetAmount:      asset,
		AssetChain:       req.AssetChain,
		CardAmount:       card,
		CardBrand:        req.CardBrand,
		CurrentRate:      rate,
		HoldWindow:       time.Duration(req.HoldWindowSec) * time.Second,
		SlippageBoundBps: req.SlippageBoundBps,
		AutoFallback:     req.AutoFallback,
		Refs:             req.Refs,
	}, now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := g.sessions.Put(c.Request.Context(), ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": ctx})
}

func (g *Gateway) getSession(c *gin.Context) {
	ctx, ok := g.loadSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": ctx, "total_local": ctx.TotalLocal()})
}

// SetAmountsRequest replaces the three leg amounts.
type SetAmountsRequest struct {
	LedgerAmount string `json:"ledger_amount"`
	AssetAmount  string `json:"asset_amount"`
	CardAmount   string `json:"card_amount"`
}

func (g *Gateway) setAmounts(c *gin.Context) {
	var req SetAmountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ledger, err := parseAmount(req.LedgerAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ledger_amount"})
		return
	}
	card, err := parseAmount(req.CardAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card_amount"})
		return
	}
	asset, err := parseQuantity(req.AssetAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset_amount"})
		return
	}

	g.applyEvent(c, checkout.SetAmounts{Ledger: ledger, Asset: asset, Card: card}, "")
}

// SetRateRequest replaces the current exchange rate.
type SetRateRequest struct {
	Rate string `json:"rate" binding:"required"`
}

func (g *Gateway) setRate(c *gin.Context) {
	var req SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	rate, err := money.NewRate(req.Rate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate"})
		return
	}
	g.applyEvent(c, checkout.SetRate{Rate: rate}, "")
}

func (g *Gateway) lockQuote(c *gin.Context) {
	quoteID := "Q-" + uuid.New().String()
	g.applyEvent(c, checkout.LockQuote{QuoteID: quoteID}, messaging.EventTypeQuoteLocked)
}

func (g *Gateway) resetQuote(c *gin.Context) {
	g.applyEvent(c, checkout.ResetQuote{}, messaging.EventTypeQuoteReset)
}

func (g *Gateway) toggleFallback(c *gin.Context) {
	g.applyEvent(c, checkout.ToggleAutoFallback{}, "")
}

// applyEvent loads the session, runs one explicit transition, persists the
// successor context, and optionally publishes a quote event.
func (g *Gateway) applyEvent(c *gin.Context, ev checkout.Event, subject string) {
	ctx, ok := g.loadSession(c)
	if !ok {
		return
	}

	now := g.now()
	next, err := checkout.Apply(ctx, ev, now)
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, checkout.ErrNegativeAmount) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if err := g.sessions.Put(c.Request.Context(), next); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	if subject != "" && g.msgClient != nil {
		g.msgClient.Publish(c.Request.Context(), subject, messaging.QuoteEvent{
			EventID:   uuid.New(),
			SessionID: next.SessionID,
			QuoteID:   next.Quote.ID,
			Rate:      next.CurrentRate.String(),
			At:        now,
		})
	}

	c.JSON(http.StatusOK, gin.H{"session": next})
}

// EvaluateRequest runs one evaluation pass. Now overrides the engine clock
// for this pass; DeclaredTotal, when present, is verified against the tender
// sum before evaluation.
type EvaluateRequest struct {
	Now           *time.Time `json:"now"`
	DeclaredTotal string     `json:"declared_total"`
}

func (g *Gateway) evaluate(c *gin.Context) {
	// An empty body is fine; evaluation has no required inputs.
	var req EvaluateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	ctx, ok := g.loadSession(c)
	if !ok {
		return
	}

	now := g.now()
	if req.Now != nil {
		now = *req.Now
	}

	if req.DeclaredTotal != "" {
		declared, err := money.NewAmount(req.DeclaredTotal)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid declared_total"})
			return
		}
		if err := ctx.VerifyDeclaredTotal(declared); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	res := checkout.Evaluate(ctx, now)
	art := g.builder.Build(res)

	if err := g.sessions.Put(c.Request.Context(), res.Context); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	if err := g.artifacts.PutArtifact(c.Request.Context(), res.Context.SessionID, art); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store artifact"})
		return
	}

	g.publishEvaluation(c, res, art)
	g.broadcastQuoteStatus(res.Context, now)

	c.JSON(http.StatusOK, gin.H{
		"result":         res,
		"artifact":       art,
		"receipt":        artifact.RenderReceipt(art),
		"reconciliation": artifact.RenderReconciliation(art),
	})
}

func (g *Gateway) getArtifact(c *gin.Context) {
	id := c.Param("id")
	art, err := g.artifacts.GetArtifact(c.Request.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no artifact for session"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load artifact"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"artifact":       art,
		"receipt":        artifact.RenderReceipt(art),
		"reconciliation": artifact.RenderReconciliation(art),
	})
}

func (g *Gateway) publishEvaluation(c *gin.Context, res checkout.Result, art artifact.Artifact) {
	if g.msgClient == nil {
		return
	}
	reqCtx := c.Request.Context()

	g.msgClient.Publish(reqCtx, messaging.EventTypeCheckoutEvaluated, messaging.EvaluatedEvent{
		EventID:      uuid.New(),
		SessionID:    res.Context.SessionID,
		RID:          art.RID,
		Jurisdiction: res.Context.Jurisdiction,
		Approved:     res.Decision.Approved,
		Reason:       string(res.Decision.Reason),
		TotalLocal:   res.TotalLocal.String(),
		EvaluatedAt:  res.EvaluatedAt,
	})

	if res.FallbackApplied {
		trigger := "slippage_breached"
		if !res.Validity.HoldValid {
			trigger = "quote_expired"
		}
		g.msgClient.Publish(reqCtx, messaging.EventTypeFallbackApplied, messaging.FallbackEvent{
			EventID:     uuid.New(),
			SessionID:   res.Context.SessionID,
			RID:         art.RID,
			MovedLocal:  res.FallbackMoved.String(),
			CurrentRate: res.Context.CurrentRate.String(),
			Trigger:     trigger,
			AppliedAt:   res.EvaluatedAt,
		})
	}

	g.msgClient.Publish(reqCtx, messaging.EventTypeArtifactBuilt, messaging.ArtifactEvent{
		EventID:      uuid.New(),
		SessionID:    res.Context.SessionID,
		RID:          art.RID,
		Jurisdiction: res.Context.Jurisdiction,
		BatchID:      art.Reconciliation.BatchID,
		Gross:        art.Receipt.Gross.String(),
		Net:          art.Receipt.Net.String(),
		PolicyHash:   art.Reconciliation.PolicyHash,
		BuiltAt:      art.BuiltAt,
	})
}

func (g *Gateway) loadSession(c *gin.Context) (checkout.Context, bool) {
	id := c.Param("id")
	ctx, err := g.sessions.Get(c.Request.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return checkout.Context{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return checkout.Context{}, false
	}
	return ctx, true
}

func parseAmount(s string) (money.Amount, error) {
	if s == "" {
		return money.Zero, nil
	}
	return money.NewAmount(s)
}

func parseQuantity(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// RateLimiter is a sliding-window per-client limiter.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// Allow reports whether key may make a request at now.
func (rl *RateLimiter) Allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)

	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// quoteStatus is the frame pushed to websocket subscribers.
type quoteStatus struct {
	SessionID     string         `json:"session_id"`
	State         quote.State    `json:"state"`
	Validity      quote.Validity `json:"validity"`
	RemainingHold float64        `json:"remaining_hold_sec"`
	CurrentRate   string         `json:"current_rate"`
	At            time.Time      `json:"at"`
}
