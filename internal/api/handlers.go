// Package api wires up the optional Gin HTTP admin surface of a node.
//
// The surface mirrors the CLI: key-value operations ride the same
// client-side ring operations, and the read-only endpoints expose ring
// state for dashboards and experiment drivers.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ntua-el20059/Chordify/internal/chord"
)

// Handler holds the node injected from main.
type Handler struct {
	node *chord.Node
}

// NewHandler creates a Handler.
func NewHandler(n *chord.Node) *Handler {
	return &Handler{node: n}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	kv := r.Group("/kv")
	kv.GET("", h.QueryAll)
	kv.GET("/:key", h.Query)
	kv.PUT("/:key", h.Insert)
	kv.DELETE("/:key", h.Delete)

	ring := r.Group("/ring")
	ring.GET("/overlay", h.Overlay)

	r.GET("/status", h.Status)
	r.GET("/entries", h.Entries)
}

// ─── Key-value handlers ───────────────────────────────────────────────────────

// Insert handles PUT /kv/:key
// Body: {"value": "<string>"}
func (h *Handler) Insert(c *gin.Context) {
	key := c.Param("key")

	var body struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.node.Insert(key, body.Value); err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "inserted": true})
}

// Query handles GET /kv/:key
func (h *Handler) Query(c *gin.Context) {
	key := c.Param("key")

	value, err := h.node.Query(key)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	if value == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": *value})
}

// Delete handles DELETE /kv/:key
func (h *Handler) Delete(c *gin.Context) {
	key := c.Param("key")

	if err := h.node.Delete(key); err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "deleted": true})
}

// QueryAll handles GET /kv — the global snapshot.
func (h *Handler) QueryAll(c *gin.Context) {
	entries, err := h.node.QueryAll()
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ─── Ring introspection ───────────────────────────────────────────────────────

// Status handles GET /status
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"self":        h.node.Self(),
		"successor":   h.node.Successor(),
		"predecessor": h.node.Predecessor(),
		"bootstrap":   h.node.BootstrapHandle(),
		"policy":      h.node.Policy(),
	})
}

// Overlay handles GET /ring/overlay
func (h *Handler) Overlay(c *gin.Context) {
	nodes, err := h.node.Overlay()
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

// Entries handles GET /entries — this node's local shard only.
func (h *Handler) Entries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.node.Entries()})
}
