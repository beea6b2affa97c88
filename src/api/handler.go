package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/reconciler"
	"github.com/onemorebsmith/psychcoins/src/registry"
	"go.uber.org/zap"
)

// Engine is the part of the reconciler the http surface drives
type Engine interface {
	View() reconciler.ViewModel
	Account() common.Address
	Toggle(ctx context.Context, id model.ActionId) (*reconciler.ToggleResult, error)
	ToggleAsync(ctx context.Context, id model.ActionId) (*reconciler.ToggleResult, error)
	SelectStage(ctx context.Context, index int) error
	Reset(ctx context.Context) error
	Refresh(ctx context.Context) error
	SwitchNetwork(ctx context.Context) error
	DismissError(id model.ActionId) error
}

type JournalReader interface {
	Entries(ctx context.Context, account string, limit int) ([]*model.JournalEntry, error)
}

type Handler struct {
	engine   Engine
	registry *registry.Registry
	journal  JournalReader // nil when no journal is configured
	logger   *zap.Logger
}

func NewHandler(engine Engine, reg *registry.Registry, journal JournalReader, logger *zap.Logger) *Handler {
	return &Handler{
		engine:   engine,
		registry: reg,
		journal:  journal,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// Register mounts the read routes on rg and the intent routes on a group
// guarded by limiter
func (h *Handler) Register(rg *gin.RouterGroup, limiter gin.HandlerFunc) {
	rg.GET("/view", h.GetView)
	rg.GET("/stages/:index/tools/:category", h.DownloadTool)
	if h.journal != nil {
		rg.GET("/journal", h.GetJournal)
	}

	intents := rg.Group("")
	if limiter != nil {
		intents.Use(limiter)
	}
	{
		intents.POST("/actions/:id/toggle", h.Toggle)
		intents.DELETE("/actions/:id/error", h.DismissError)
		intents.POST("/stage", h.SelectStage)
		intents.POST("/reset", h.Reset)
		intents.POST("/refresh", h.Refresh)
		intents.POST("/network/switch", h.SwitchNetwork)
	}
}

// GetView handles GET /view
func (h *Handler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.View())
}

func parseActionParam(c *gin.Context) (model.ActionId, bool) {
	raw := c.Param("id")
	if _, _, err := model.ParseActionId(raw); err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return model.ActionId(raw), true
}

// Toggle handles POST /actions/:id/toggle. The write runs in the background
// unless ?wait=true is given, in which case the response waits for the
// ledger.
func (h *Handler) Toggle(c *gin.Context) {
	id, ok := parseActionParam(c)
	if !ok {
		return
	}
	wait, _ := strconv.ParseBool(c.DefaultQuery("wait", "false"))

	var res *reconciler.ToggleResult
	var err error
	if wait {
		res, err = h.engine.Toggle(c.Request.Context(), id)
	} else {
		res, err = h.engine.ToggleAsync(c.Request.Context(), id)
	}
	if err != nil {
		h.logger.Warn("toggle failed", zap.String("action", string(id)), zap.Error(err))
		abortWithError(c, err)
		return
	}

	status := http.StatusOK
	switch {
	case res.NeedsNetworkSwitch:
		status = http.StatusConflict
	case res.Dispatched:
		status = http.StatusAccepted
	}
	body := gin.H{
		"result": res,
		"view":   h.engine.View(),
	}
	if res.NeedsNetworkSwitch {
		body["error"] = "wallet is connected to the wrong network"
		body["kind"] = model.KindNetworkMismatch
		body["needs_network_switch"] = true
	}
	c.JSON(status, body)
}

// DismissError handles DELETE /actions/:id/error
func (h *Handler) DismissError(c *gin.Context) {
	id, ok := parseActionParam(c)
	if !ok {
		return
	}
	if err := h.engine.DismissError(id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.engine.View())
}

type stageRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SelectStage handles POST /stage {"index": n}
func (h *Handler) SelectStage(c *gin.Context) {
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"index\": n}")
		return
	}
	if err := h.engine.SelectStage(c.Request.Context(), *req.Index); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.engine.View())
}

// Reset handles POST /reset
func (h *Handler) Reset(c *gin.Context) {
	if err := h.engine.Reset(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.engine.View())
}

// Refresh handles POST /refresh. Partial read failures still return the view,
// with the error attached.
func (h *Handler) Refresh(c *gin.Context) {
	body := gin.H{}
	if err := h.engine.Refresh(c.Request.Context()); err != nil {
		h.logger.Warn("refresh incomplete", zap.Error(err))
		body["error"] = err.Error()
		body["kind"] = model.KindOf(err)
	}
	body["view"] = h.engine.View()
	c.JSON(http.StatusOK, body)
}

// SwitchNetwork handles POST /network/switch
func (h *Handler) SwitchNetwork(c *gin.Context) {
	if err := h.engine.SwitchNetwork(c.Request.Context()); err != nil {
		h.logger.Warn("network switch failed", zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.engine.View())
}

// DownloadTool handles GET /stages/:index/tools/:category
func (h *Handler) DownloadTool(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "index must be an integer")
		return
	}
	cat, err := model.ParseCategory(c.Param("category"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	name, body, err := h.registry.Tool(index, cat)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(body))
}

// GetJournal handles GET /journal?limit=n for the connected account
func (h *Handler) GetJournal(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		badRequest(c, "limit must be between 1 and 500")
		return
	}
	entries, err := h.journal.Entries(c.Request.Context(), h.engine.Account().Hex(), limit)
	if err != nil {
		h.logger.Error("journal read failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to query journal", "kind": model.KindUnknown})
		return
	}
	if entries == nil {
		entries = []*model.JournalEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
