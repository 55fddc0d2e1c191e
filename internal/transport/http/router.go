package apihttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"fusor/internal/decision"
	"fusor/internal/market"
	"fusor/internal/pipeline"
	"fusor/internal/risk"
	"fusor/internal/signal"
	"fusor/internal/store/decisionlog"

	"github.com/gin-gonic/gin"
)

const maxSubmissionBytes = 64 << 10

// Submitter accepts validated signals for routing.
type Submitter interface {
	Submit(sig signal.Signal) error
}

// DecisionReader answers synchronous decision queries.
type DecisionReader interface {
	Latest(ctx context.Context, symbol, timeframe string) (decision.TradingDecision, error)
	History(ctx context.Context, symbol, timeframe string, limit int) ([]decision.TradingDecision, error)
}

// MarketFeed ingests market context pushed by data collaborators.
type MarketFeed interface {
	Update(symbol, timeframe string, candles []market.Candle, depth *market.DepthSnapshot, lastPrice float64) market.Context
}

// AccountFeed ingests portfolio snapshots pushed by the execution
// collaborator.
type AccountFeed interface {
	Update(p risk.Portfolio)
}

// Router holds the /api/v1 handlers.
type Router struct {
	submitter Submitter
	decisions DecisionReader
	marketIn  MarketFeed
	account   AccountFeed
}

func NewRouter(submitter Submitter, decisions DecisionReader, marketIn MarketFeed, account AccountFeed) *Router {
	return &Router{submitter: submitter, decisions: decisions, marketIn: marketIn, account: account}
}

// Register mounts the routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/signals", r.handleSubmitSignal)
	if r.decisions != nil {
		group.GET("/decisions/:symbol", r.handleLatestDecision)
		group.GET("/decisions/:symbol/history", r.handleDecisionHistory)
	}
	if r.marketIn != nil {
		group.POST("/market", r.handleMarketUpdate)
	}
	if r.account != nil {
		group.POST("/portfolio", r.handlePortfolioUpdate)
	}
}

func (r *Router) handleSubmitSignal(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSubmissionBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	sig, err := signal.ParseSubmission(raw, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.submitter.Submit(sig); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrUnknownPair):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, pipeline.ErrInboxFull):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":   "accepted",
		"agent_id": sig.AgentID,
		"symbol":   sig.Symbol,
	})
}

func (r *Router) handleLatestDecision(c *gin.Context) {
	symbol := c.Param("symbol")
	timeframe := c.Query("timeframe")
	d, err := r.decisions.Latest(c.Request.Context(), symbol, timeframe)
	if err != nil {
		status := http.StatusInternalServerError
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (r *Router) handleDecisionHistory(c *gin.Context) {
	symbol := c.Param("symbol")
	timeframe := c.Query("timeframe")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := r.decisions.History(c.Request.Context(), symbol, timeframe, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "count": len(items), "decisions": items})
}

type marketUpdateRequest struct {
	Symbol    string                `json:"symbol" binding:"required"`
	Timeframe string                `json:"timeframe" binding:"required"`
	LastPrice float64               `json:"last_price"`
	Candles   []market.Candle       `json:"candles"`
	Depth     *market.DepthSnapshot `json:"depth"`
}

func (r *Router) handleMarketUpdate(c *gin.Context) {
	var req marketUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mctx := r.marketIn.Update(req.Symbol, req.Timeframe, req.Candles, req.Depth, req.LastPrice)
	c.JSON(http.StatusOK, gin.H{
		"symbol":       mctx.Symbol,
		"timeframe":    mctx.Timeframe,
		"regime":       mctx.Regime,
		"atr":          mctx.ATR,
		"realized_vol": mctx.RealizedVol,
	})
}

func (r *Router) handlePortfolioUpdate(c *gin.Context) {
	var p risk.Portfolio
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.EquityUSD < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "equity_usd cannot be negative"})
		return
	}
	r.account.Update(p)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isNotFound(err error) bool {
	return errors.Is(err, decisionlog.ErrNotFound)
}
