// Package rest serves projections and cross-sections of a loaded volume over HTTP.
package rest

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"slicestack/internal/logging"
	"slicestack/internal/models"
	"slicestack/pkg/config"
	"slicestack/pkg/filter"
	"slicestack/pkg/filter2d"
	"slicestack/pkg/imageio"
	"slicestack/pkg/processing"
	"slicestack/pkg/projection"
	"slicestack/pkg/visualization"
	"slicestack/pkg/volume"
)

var errUnknownPlane = errors.New("unknown plane")

// planeAxes maps a plane name to the axis it is perpendicular to
var planeAxes = map[string]models.Axis{
	"xz": models.AxisY,
	"yz": models.AxisX,
	"xy": models.AxisZ,
}

// Server holds the volume as loaded and the currently served, possibly filtered, copy.
type Server struct {
	workers int

	mu       sync.RWMutex
	original *volume.Grid
	current  *volume.Grid
	filter   processing.FilterParams
}

// NewServer serves grid; filters run with up to workers goroutines
func NewServer(grid *volume.Grid, workers int) *Server {
	return &Server{
		workers:  workers,
		original: grid,
		current:  grid,
		filter:   processing.FilterParams{Type: config.FilterNone},
	}
}

// Router builds the gin engine with all API routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	api := r.Group("/api")
	{
		api.GET("/ping", getPing)
		api.GET("/volume", s.getVolume)
		api.GET("/projection/:rule", s.getProjection)
		api.GET("/slice/:plane/:index", s.getSlice)
		api.GET("/region", s.getRegion)
		api.POST("/filter", s.postFilter)
		api.POST("/reset", s.postReset)
	}
	return r
}

// Serve listens on addr until the server fails
func (s *Server) Serve(addr string) error {
	logging.Logf("Serving volume %s on %s", s.grid(), addr)
	return s.Router().Run(addr)
}

func (s *Server) grid() *volume.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Logf("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// statusOf maps domain errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, projection.ErrUnknownRule), errors.Is(err, errUnknownPlane):
		return http.StatusNotFound
	case errors.Is(err, volume.ErrIndexOutOfBounds),
		errors.Is(err, projection.ErrInvalidRange),
		errors.Is(err, filter.ErrInvalidKernelSize),
		errors.Is(err, volume.ErrEmptyGrid),
		errors.Is(err, filter.ErrInvalidSigma),
		errors.Is(err, filter2d.ErrUnknownOp),
		errors.Is(err, filter2d.ErrInvalidArgument),
		errors.Is(err, processing.ErrUnknownFilter):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": err.Error()})
}

// writePNG runs the operators named in the "post" query parameter, a
// comma-separated filter2d list, and sends the result as PNG
func writePNG(c *gin.Context, img *models.Image) {
	if post := c.Query("post"); post != "" {
		chain, err := filter2d.ParseChain(strings.Split(post, ","))
		if err == nil {
			img, err = chain.Apply(img)
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
	}
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, ".png", img); err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

type volumeInfo struct {
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Depth    int          `json:"depth"`
	Channels int          `json:"channels"`
	Filter   string       `json:"filter"`
	Stats    volume.Stats `json:"stats"`
}

func (s *Server) getVolume(c *gin.Context) {
	s.mu.RLock()
	g, f := s.current, s.filter
	s.mu.RUnlock()

	c.JSON(http.StatusOK, volumeInfo{
		Width:    g.Width(),
		Height:   g.Height(),
		Depth:    g.Depth(),
		Channels: g.Channels(),
		Filter:   f.Tag(),
		Stats:    g.Stats(),
	})
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("query parameter " + key + " must be an integer")
	}
	return n, nil
}

func (s *Server) getProjection(c *gin.Context) {
	rule, err := projection.ParseRule(c.Param("rule"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	var opts projection.Options
	if opts.MinZ, err = queryInt(c, "minZ"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if opts.MaxZ, err = queryInt(c, "maxZ"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts.FirstChannelOnly = c.Query("channels") == "first"

	img, err := projection.Project(s.grid(), rule, opts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writePNG(c, img)
}

func (s *Server) getSlice(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}

	axis, ok := planeAxes[strings.ToLower(c.Param("plane"))]
	if !ok {
		abortWithError(c, errUnknownPlane)
		return
	}
	img, err := visualization.NewViewer(s.grid()).ExtractSlice(axis, index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writePNG(c, img)
}

type regionInfo struct {
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Depth    int          `json:"depth"`
	Channels int          `json:"channels"`
	Stats    volume.Stats `json:"stats"`
}

// getRegion crops the box at 0-based (x, y, z) of size (w, h, d). Without a
// rule it describes the box; with rule=mip|minip|aip it returns its projection.
func (s *Server) getRegion(c *gin.Context) {
	var box [6]int
	for i, key := range []string{"x", "y", "z", "w", "h", "d"} {
		n, err := queryInt(c, key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		box[i] = n
	}

	region, err := visualization.NewViewer(s.grid()).ExtractRegion(box[0], box[1], box[2], box[3], box[4], box[5])
	if err != nil {
		abortWithError(c, err)
		return
	}

	if name := c.Query("rule"); name != "" {
		rule, err := projection.ParseRule(name)
		if err != nil {
			abortWithError(c, err)
			return
		}
		img, err := projection.Project(region, rule, projection.Options{})
		if err != nil {
			abortWithError(c, err)
			return
		}
		writePNG(c, img)
		return
	}

	c.JSON(http.StatusOK, regionInfo{
		Width:    region.Width(),
		Height:   region.Height(),
		Depth:    region.Depth(),
		Channels: region.Channels(),
		Stats:    region.Stats(),
	})
}

type postFilterArgs struct {
	Type       string  `json:"type" binding:"required"`
	KernelSize int     `json:"kernelSize"`
	Sigma      float64 `json:"sigma"`
}

// postFilter filters the volume as loaded, so filters never stack
func (s *Server) postFilter(c *gin.Context) {
	var args postFilterArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := processing.FilterParams{
		Type:       strings.ToLower(args.Type),
		KernelSize: args.KernelSize,
		Sigma:      args.Sigma,
	}

	start := time.Now()
	filtered, err := processing.ApplyFilter(s.original, params, s.workers)
	if err != nil {
		abortWithError(c, err)
		return
	}
	elapsed := time.Since(start)
	logging.Logf("Filter %s took %v", params.Tag(), elapsed)

	s.mu.Lock()
	s.current, s.filter = filtered, params
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"filter":    params.Tag(),
		"elapsedMs": elapsed.Milliseconds(),
		"metrics":   processing.CompareGrids(s.original, filtered),
	})
}

func (s *Server) postReset(c *gin.Context) {
	none := processing.FilterParams{Type: config.FilterNone}
	s.mu.Lock()
	s.current, s.filter = s.original, none
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"filter": none.Tag()})
}
