package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matchday/newswire/internal/quota"
	"github.com/matchday/newswire/internal/scheduler"
	"github.com/matchday/newswire/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	store  *storage.Store
	ledger *quota.Ledger
	sched  *scheduler.Scheduler

	authUser string
	authPass string
	sources  []string
}

func NewServer(store *storage.Store, ledger *quota.Ledger, sched *scheduler.Scheduler, authUser, authPass string, sources []string) *Server {
	return &Server{
		store:    store,
		ledger:   ledger,
		sched:    sched,
		authUser: authUser,
		authPass: authPass,
		sources:  sources,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	// 健康检查和指标不走鉴权，探针与抓取器直连
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	if s.authUser != "" {
		v1.Use(s.basicAuth())
	}
	{
		v1.GET("/news", s.listNews)
		v1.GET("/quota", s.quotaStatus)
		v1.POST("/collect", s.collect)
	}
}

// basicAuth 常数时间比较，避免用户名口令长度侧信道
func (s *Server) basicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.authUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.authPass)) == 1
		if !ok || !userOK || !passOK {
			c.Header("WWW-Authenticate", `Basic realm="newswire"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "authentication required",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listNews(c *gin.Context) {
	category := c.Query("category")
	sort := c.DefaultQuery("sort", "latest")
	if sort != "latest" && sort != "hot" {
		sort = "latest"
	}

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.ListArticles(category, sort, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func (s *Server) quotaStatus(c *gin.Context) {
	now := time.Now()
	if d := c.Query("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "bad_request",
				"message": "date must be YYYY-MM-DD",
			})
			return
		}
		now = parsed
	}

	sources := s.sources
	if want := c.Query("source"); want != "" {
		sources = nil
		for _, source := range s.sources {
			if source == want {
				sources = []string{source}
				break
			}
		}
		if sources == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "bad_request",
				"message": "unknown source: " + want,
			})
			return
		}
	}

	type sourceQuota struct {
		Source            string   `json:"source"`
		Date              string   `json:"date"`
		DailyAllowance    int      `json:"dailyAllowance"`
		Used              int      `json:"used"`
		Remaining         int      `json:"remaining"`
		MonthlyProjection int      `json:"monthlyProjection"`
		Keywords          []string `json:"keywords"`
	}

	out := make([]sourceQuota, 0, len(sources))
	for _, source := range sources {
		allowance := s.ledger.DailyAllowance(source, now)

		rec, err := s.ledger.Usage(c.Request.Context(), source, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "quota_unavailable",
				"message": "quota ledger unavailable",
			})
			return
		}

		used := 0
		keywords := []string{}
		if rec != nil {
			used = rec.RequestsUsed
			keywords = rec.KeywordsUsed
		}
		remaining := allowance - used
		if remaining < 0 {
			remaining = 0
		}
		projection, _ := s.ledger.MonthlyProjection(c.Request.Context(), source, now)

		out = append(out, sourceQuota{
			Source:            source,
			Date:              now.Format("2006-01-02"),
			DailyAllowance:    allowance,
			Used:              used,
			Remaining:         remaining,
			MonthlyProjection: projection,
			Keywords:          keywords,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    out,
	})
}

type collectRequest struct {
	Type        string `json:"type"`
	ForceSearch bool   `json:"forceSearch"`
}

func (s *Server) collect(c *gin.Context) {
	var req collectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "invalid request body",
			})
			return
		}
	}
	if req.Type != "" && req.Type != "auto" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "unsupported collect type: " + req.Type,
		})
		return
	}

	report, err := s.sched.RunOnce(c.Request.Context(), req.ForceSearch)
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"message": "a collect run is already in progress",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "collect run finished",
		"stats":   report,
	})
}
