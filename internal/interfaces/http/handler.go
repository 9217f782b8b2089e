// @title           Candle Aggregator API
// @version         1.0
// @description     Read API for OHLC candles aggregated from the trade stream
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const candlesPath = "/api/v1/candles"

const (
	msgMissingParams    = "Missing required parameters: asset and ts are required"
	msgInvalidTimeframe = "Invalid timeframe. Must be one of: 1m, 5m, 10m, 30m"
	msgInternal         = "Internal server error"
	msgFetchFailed      = "Failed to fetch candle data"
)

// CandleService is the read side the handler needs.
type CandleService interface {
	GetCandles(ctx context.Context, query marketdata.CandleQuery) ([]marketdata.Candle, error)
}

type Handler struct {
	router   *gin.Engine
	candles  CandleService
	cache    *redis.Client
	cacheTTL time.Duration
	log      *logrus.Entry
}

func NewHandler(candles CandleService, cache *redis.Client, cacheTTL time.Duration, logger *logrus.Logger) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:   router,
		candles:  candles,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      logger.WithField("component", "http"),
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	h.router.GET("/health", h.health)

	candles := h.router.Group(candlesPath)
	if h.cache != nil {
		candles.Use(h.cacheMiddleware())
	}
	candles.GET("", h.getCandles)
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type candleResponse struct {
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Asset     string `json:"asset"`
}

type candlesResponse struct {
	Success   bool             `json:"success"`
	Data      []candleResponse `json:"data"`
	Count     int              `json:"count"`
	Timeframe string           `json:"timeframe"`
	Asset     string           `json:"asset"`
}

// health reports liveness
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, messageResponse{Message: "Health Check!"})
}

// getCandles returns finalized candles for one asset and timeframe
// @Summary      Get candles
// @Description  Candles ordered by window start. startTime and endTime filter the window start, both inclusive.
// @Tags         candles
// @Produce      json
// @Param        asset      query     string  true   "Asset symbol"
// @Param        ts         query     string  true   "Timeframe"  Enums(1m, 5m, 10m, 30m)
// @Param        startTime  query     int     false  "Lower window start bound (ms)"
// @Param        endTime    query     int     false  "Upper window start bound (ms)"
// @Success      200        {object}  candlesResponse
// @Failure      400        {object}  errorResponse
// @Failure      500        {object}  errorResponse
// @Router       /candles [get]
func (h *Handler) getCandles(c *gin.Context) {
	asset := strings.TrimSpace(c.Query("asset"))
	ts := strings.TrimSpace(c.Query("ts"))
	if asset == "" || ts == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: msgMissingParams})
		return
	}

	tf, err := marketdata.ParseTimeframe(ts)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidTimeframe})
		return
	}

	startTime, err := parseOptionalInt64Query(c, "startTime")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	endTime, err := parseOptionalInt64Query(c, "endTime")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	candles, err := h.candles.GetCandles(c.Request.Context(), marketdata.CandleQuery{
		Asset:     asset,
		Timeframe: tf,
		StartTime: startTime,
		EndTime:   endTime,
	})
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"asset": asset, "timeframe": ts}).Error("fetch candles")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: msgInternal, Message: msgFetchFailed})
		return
	}

	data := make([]candleResponse, 0, len(candles))
	for _, candle := range candles {
		data = append(data, toCandleResponse(candle))
	}
	c.JSON(http.StatusOK, candlesResponse{
		Success:   true,
		Data:      data,
		Count:     len(data),
		Timeframe: tf.String(),
		Asset:     asset,
	})
}

func toCandleResponse(candle marketdata.Candle) candleResponse {
	return candleResponse{
		Open:      candle.Open.String(),
		High:      candle.High.String(),
		Low:       candle.Low.String(),
		Close:     candle.Close.String(),
		StartTime: strconv.FormatInt(candle.WindowStart, 10),
		EndTime:   strconv.FormatInt(candle.WindowEnd, 10),
		Asset:     candle.Asset,
	}
}

// cacheMiddleware caches successful GET responses in Redis.
func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			if err := h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err(); err != nil {
				h.log.WithError(err).WithField("key", key).Warn("cache response")
			}
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.FullPath(), c.Request.URL.RawQuery)
}

func parseOptionalInt64Query(c *gin.Context, key string) (*int64, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer (ms)", key)
	}
	return &v, nil
}
