// Package server exposes the world lifecycle over HTTP.
package server

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/worldsmith/worldsmith/internal/bootstrap"
	"github.com/worldsmith/worldsmith/internal/store"
)

// CreateParams is the JSON body for world creation.
type CreateParams struct {
	Name       string `json:"name"`
	Software   string `json:"software"`
	Version    string `json:"version"`
	MaxPlayers int    `json:"max_players"`
	ServerPort int    `json:"server_port"`
	RCONPort   int    `json:"rcon_port"`
	JMXPort    int    `json:"jmx_port"`
	RMIPort    int    `json:"rmi_port"`
	MemoryMB   int    `json:"memory_mb"`
}

// Status is the live view of one world. Uptime and heap figures are
// only present while the world is running.
type Status struct {
	World          store.World `json:"world"`
	State          string      `json:"state"`
	OnlinePlayers  int         `json:"online_players"`
	WorldSizeBytes int64       `json:"world_size_bytes"`
	UptimeSeconds  int64       `json:"uptime_seconds,omitempty"`
	HeapUsedBytes  int64       `json:"heap_used_bytes,omitempty"`
	HeapMaxBytes   int64       `json:"heap_max_bytes,omitempty"`
}

// Service is the world lifecycle surface the router exposes.
type Service interface {
	CreateWorld(ctx context.Context, p CreateParams) bootstrap.Result
	StartWorld(ctx context.Context, worldNumber string) (int, string)
	StopWorld(ctx context.Context, worldNumber, grace string) string
	DeleteWorld(ctx context.Context, worldNumber string) error
	ListWorlds(ctx context.Context) ([]store.World, error)
	WorldStatus(ctx context.Context, worldNumber string) (Status, error)
}

// Router provides embeddable HTTP handlers for managing worlds.
// Endpoints:
//
//	POST   {basePath}/worlds                 body: CreateParams JSON
//	POST   {basePath}/worlds/:number/start
//	POST   {basePath}/worlds/:number/stop    query: grace=MM:SS (optional)
//	DELETE {basePath}/worlds/:number
//	GET    {basePath}/worlds
//	GET    {basePath}/worlds/:number/status
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	svc      Service
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
func NewRouter(svc Service, basePath string) *Router {
	return &Router{svc: svc, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/worlds", r.handleCreate)
	group.POST("/worlds/:number/start", r.handleStart)
	group.POST("/worlds/:number/stop", r.handleStop)
	group.DELETE("/worlds/:number", r.handleDelete)
	group.GET("/worlds", r.handleList)
	group.GET("/worlds/:number/status", r.handleStatus)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, svc Service) (*http.Server, error) {
	r := NewRouter(svc, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type messageResp struct {
	Message string `json:"message"`
}

var worldNumberRe = regexp.MustCompile(`^[0-9]{12}$`)

func isWorldNumber(s string) bool { return worldNumberRe.MatchString(s) }

func (r *Router) handleCreate(c *gin.Context) {
	var p CreateParams
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if p.Software == "" || p.Version == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "software and version required"})
		return
	}
	res := r.svc.CreateWorld(c.Request.Context(), p)
	if res.Status != bootstrap.StatusSuccess {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (r *Router) handleStart(c *gin.Context) {
	number := c.Param("number")
	if !isWorldNumber(number) {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid world number"})
		return
	}
	if _, err := r.svc.WorldStatus(c.Request.Context(), number); err != nil {
		c.JSON(http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	// the supervised run outlives the request
	go func() {
		_, _ = r.svc.StartWorld(context.Background(), number)
	}()
	c.JSON(http.StatusAccepted, messageResp{Message: "starting"})
}

func (r *Router) handleStop(c *gin.Context) {
	number := c.Param("number")
	if !isWorldNumber(number) {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid world number"})
		return
	}
	msg := r.svc.StopWorld(c.Request.Context(), number, c.Query("grace"))
	c.JSON(http.StatusOK, messageResp{Message: msg})
}

func (r *Router) handleDelete(c *gin.Context) {
	number := c.Param("number")
	if !isWorldNumber(number) {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid world number"})
		return
	}
	if err := r.svc.DeleteWorld(c.Request.Context(), number); err != nil {
		c.JSON(http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, messageResp{Message: "deleted"})
}

func (r *Router) handleList(c *gin.Context) {
	worlds, err := r.svc.ListWorlds(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	for i := range worlds {
		redact(&worlds[i])
	}
	c.JSON(http.StatusOK, worlds)
}

func (r *Router) handleStatus(c *gin.Context) {
	number := c.Param("number")
	if !isWorldNumber(number) {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid world number"})
		return
	}
	st, err := r.svc.WorldStatus(c.Request.Context(), number)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	redact(&st.World)
	c.JSON(http.StatusOK, st)
}

// redact strips secrets before records leave the process.
func redact(w *store.World) {
	w.RCONPassword = ""
	w.ServerTempPsw = ""
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimSuffix(bp, "/")
}
