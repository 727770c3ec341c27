package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hyperifyio/dinecoach/internal/app"
	"github.com/hyperifyio/dinecoach/internal/discovery"
	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/foodfacts"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/score"
)

// Params is the preference block shared by the JSON endpoints. Missing
// fields take the server defaults.
type Params struct {
	CalorieTarget     *int     `json:"calorie_target"`
	PrioritizeProtein *bool    `json:"prioritize_protein"`
	Flags             []string `json:"flags"`
}

func (p *Params) preferences(def score.Preferences) score.Preferences {
	out := def
	if p == nil {
		return out
	}
	if p.CalorieTarget != nil {
		out.CalorieTarget = *p.CalorieTarget
	}
	if p.PrioritizeProtein != nil {
		out.PrioritizeProtein = *p.PrioritizeProtein
	}
	if p.Flags != nil {
		out.Flags = score.ParseFlags(p.Flags)
	}
	return out
}

// RankRequest carries caller-extracted menu lines.
type RankRequest struct {
	Items  []menu.Candidate `json:"items" binding:"required"`
	Params *Params          `json:"params"`
}

// AnalyzeURLRequest names a menu page or PDF to fetch.
type AnalyzeURLRequest struct {
	URL    string  `json:"url" binding:"required"`
	Params *Params `json:"params"`
}

// NearbyRequest is the JSON form of the nearby search.
type NearbyRequest struct {
	ZIP         string  `json:"zip" binding:"required"`
	RadiusMiles float64 `json:"radius_miles"`
	OnlyChains  bool    `json:"only_chains"`
	Params      *Params `json:"params"`
}

// CardRequest ranks either a URL or supplied items and returns a PDF card.
type CardRequest struct {
	URL    string           `json:"url"`
	Items  []menu.Candidate `json:"items"`
	Params *Params          `json:"params"`
}

func (h *handlers) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "pong", "version": app.BuildVersion})
}

func (h *handlers) rank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	an, err := h.svc.Rank(req.Items, req.Params.preferences(h.defaults))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, an)
}

func (h *handlers) analyzeURL(c *gin.Context) {
	var req AnalyzeURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	an, err := h.svc.AnalyzeURL(c.Request.Context(), strings.TrimSpace(req.URL), req.Params.preferences(h.defaults))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, an)
}

// analyzePDF takes a multipart upload with a "pdf" file, an optional
// "ocr" field set to 1 and an optional "params" JSON field.
func (h *handlers) analyzePDF(c *gin.Context) {
	fh, err := c.FormFile("pdf")
	if err != nil {
		if isTooLarge(err) {
			tooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing pdf file"})
		return
	}
	if fh.Size > MaxPDFBytes {
		tooLarge(c)
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxPDFBytes+1))
	if err != nil {
		badRequest(c, err)
		return
	}
	if len(data) > MaxPDFBytes {
		tooLarge(c)
		return
	}
	ct := strings.ToLower(fh.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "application/pdf") && !bytes.HasPrefix(data, []byte("%PDF-")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload a PDF"})
		return
	}

	var params *Params
	if raw := strings.TrimSpace(c.PostForm("params")); raw != "" {
		params = &Params{}
		if err := json.Unmarshal([]byte(raw), params); err != nil {
			badRequest(c, err)
			return
		}
	}
	useOCR := c.PostForm("ocr") == "1"
	an, err := h.svc.AnalyzePDF(c.Request.Context(), data, useOCR, params.preferences(h.defaults))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, an)
}

func (h *handlers) nearbyQuery(c *gin.Context) {
	p := h.defaults
	if v := c.Query("calorie_target"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "calorie_target must be an integer"})
			return
		}
		p.CalorieTarget = n
	}
	if v := c.Query("prioritize_protein"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prioritize_protein must be a boolean"})
			return
		}
		p.PrioritizeProtein = b
	}
	if v, ok := c.GetQuery("flags"); ok {
		p.Flags = score.SplitFlags(v)
	}
	req := app.NearbyRequest{ZIP: strings.TrimSpace(c.Query("zip")), Preferences: p}
	if v := c.Query("radius_miles"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius_miles must be a number"})
			return
		}
		req.RadiusMiles = r
	}
	if v := c.Query("only_chains"); v != "" {
		req.OnlyChains, _ = strconv.ParseBool(v)
	}
	h.nearby(c, req)
}

func (h *handlers) nearbyJSON(c *gin.Context) {
	var body NearbyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	h.nearby(c, app.NearbyRequest{
		ZIP:         strings.TrimSpace(body.ZIP),
		RadiusMiles: body.RadiusMiles,
		OnlyChains:  body.OnlyChains,
		Preferences: body.Params.preferences(h.defaults),
	})
}

func (h *handlers) nearby(c *gin.Context, req app.NearbyRequest) {
	if req.RadiusMiles < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "radius_miles must not be negative"})
		return
	}
	res, err := h.svc.Nearby(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) foodFacts(c *gin.Context) {
	res, err := h.svc.FoodFacts(c.Request.Context(), c.Query("q"), foodFactsResults)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) card(c *gin.Context) {
	var req CardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p := req.Params.preferences(h.defaults)
	var (
		an  app.Analysis
		err error
	)
	switch {
	case strings.TrimSpace(req.URL) != "":
		an, err = h.svc.AnalyzeURL(c.Request.Context(), strings.TrimSpace(req.URL), p)
	case len(req.Items) > 0:
		an, err = h.svc.Rank(req.Items, p)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide url or items"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := app.WriteCard(&buf, an); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="order-card.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func badRequest(c *gin.Context, err error) {
	if isTooLarge(err) {
		tooLarge(c)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
}

func tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "PDF too large", "max_size": MaxPDFBytes})
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// fail maps pipeline errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	_ = c.Error(err)
	body := gin.H{"error": msg}
	if status == http.StatusBadRequest || status == http.StatusBadGateway {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

func statusFor(err error) (int, string) {
	var verr *score.ValidationError
	var ferr *fetch.Error
	var derr *discovery.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, fetch.ErrUnsafeURL):
		return http.StatusBadRequest, "Invalid or unsafe URL"
	case errors.Is(err, fetch.ErrBlockedByRobots):
		return http.StatusForbidden, "Blocked by robots.txt. Try uploading a PDF."
	case errors.Is(err, discovery.ErrInvalidZIP):
		return http.StatusBadRequest, "Invalid ZIP"
	case errors.Is(err, discovery.ErrZIPNotFound):
		return http.StatusNotFound, "ZIP not found"
	case errors.Is(err, foodfacts.ErrEmptyQuery):
		return http.StatusBadRequest, "Missing query"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Upstream timed out"
	case errors.As(err, &ferr):
		return http.StatusBadGateway, "Could not fetch menu"
	case errors.As(err, &derr):
		return http.StatusBadGateway, "Restaurant lookup failed"
	}
	return http.StatusInternalServerError, "Internal server error"
}
