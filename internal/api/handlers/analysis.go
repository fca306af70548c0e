package handlers

import (
	"errors"
	"net/http"

	"fleetlens/internal/analysis"
	"fleetlens/internal/enrich"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// AnalysisHandler exposes the analysis pipeline over HTTP
type AnalysisHandler struct {
	service  *analysis.Service
	enricher *enrich.Enricher // nil when LLM enrichment is disabled
	roots    []string
	logger   *pterm.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *analysis.Service, enricher *enrich.Enricher, roots []string, logger *pterm.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:  service,
		enricher: enricher,
		roots:    roots,
		logger:   logger,
	}
}

// resolveRoot validates the root query parameter against the configured
// roots. With a single configured root the parameter may be omitted.
func (h *AnalysisHandler) resolveRoot(c *gin.Context) (string, bool) {
	root := c.Query("root")
	if root == "" {
		if len(h.roots) == 1 {
			return h.roots[0], true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing root parameter"})
		return "", false
	}
	for _, known := range h.roots {
		if known == root {
			return root, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Unknown logs root"})
	return "", false
}

// GetRoots lists the configured logs roots and their run state
func (h *AnalysisHandler) GetRoots(c *gin.Context) {
	type rootInfo struct {
		Root  string `json:"root"`
		State string `json:"state"`
	}
	infos := make([]rootInfo, len(h.roots))
	for i, root := range h.roots {
		infos[i] = rootInfo{Root: root, State: h.service.State(root).String()}
	}
	c.JSON(http.StatusOK, gin.H{"roots": infos})
}

// GetSignature returns the current file-set fingerprint for a root
func (h *AnalysisHandler) GetSignature(c *gin.Context) {
	root, ok := h.resolveRoot(c)
	if !ok {
		return
	}

	sig, err := h.service.ComputeSignature(root)
	if err != nil {
		h.logger.WithCaller().Error("Failed to compute signature",
			h.logger.Args("root", root, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute signature"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"root":  root,
		"hash":  sig.Hash,
		"files": len(sig.Files),
	})
}

// RunAnalysis triggers an analysis run and returns the resulting (or
// previous, stale-flagged) report
func (h *AnalysisHandler) RunAnalysis(c *gin.Context) {
	root, ok := h.resolveRoot(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	report, refreshing, err := h.service.GetOrRunAnalysis(c.Request.Context(), root, force)
	if err != nil {
		h.logger.WithCaller().Error("Analysis run failed",
			h.logger.Args("root", root, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed"})
		return
	}

	status := http.StatusOK
	if refreshing {
		status = http.StatusAccepted
	}
	c.JSON(status, report)
}

// GetReport returns the latest published report without triggering work
func (h *AnalysisHandler) GetReport(c *gin.Context) {
	root, ok := h.resolveRoot(c)
	if !ok {
		return
	}

	report, err := h.service.GetCachedReport(root)
	if err != nil {
		if errors.Is(err, analysis.ErrNoReport) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No report for root yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetModels lists the models the enrichment provider advertises
func (h *AnalysisHandler) GetModels(c *gin.Context) {
	if h.enricher == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "models": []string{}})
		return
	}
	models := h.enricher.ListModels(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"enabled": true, "models": models})
}
