package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	datafeed "github.com/fazecat/smarttrader/Internal/database"
	"github.com/fazecat/smarttrader/Internal/handlers"
	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/utils/formatting"
)

type API struct {
	Service        *handlers.Service
	JWT            *JWTManager
	DB             *sql.DB
	Password       string
	AllowedOrigins []string
	Log            zerolog.Logger
}

// Routes builds the router; mutating routes require a bearer token
func (api *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(api.Log))
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware(api.AllowedOrigins))

	r.Get("/health", api.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/token", api.HandleGenerateToken)

		r.Get("/analyze/{symbol}", api.HandleAnalyze)
		r.Get("/sentiment/{symbol}", api.HandleSentiment)
		r.Get("/news", api.HandleGetNews)
		r.Get("/screen", api.HandleScreen)
		r.Get("/recommendations", api.HandleGetRecommendations)
		r.Get("/recent-trades", api.HandleRecentTrades)
		r.Get("/positions", api.HandleGetPositions)
		r.Get("/portfolio", api.HandlePortfolio)

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(api.JWT))
			r.Post("/execute-trade", api.HandleExecuteTrade)
			r.Post("/recommendations/refresh", api.HandleRefreshRecommendations)
			r.Delete("/orders/{orderID}", api.HandleCancelOrder)
		})
	})
	return r
}

// ============================================================================
// RESPONSES
// ============================================================================

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{
		"status": "error",
		"error":  msg,
	})
}

// maps application errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ports.ErrValidationFailure):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrDataUnavailable), errors.Is(err, ports.ErrComputationSkipped):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrProviderFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	event := api.Log.Warn()
	if status >= http.StatusInternalServerError {
		event = api.Log.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	WriteError(w, status, err.Error())
}

// ============================================================================
// HANDLERS
// ============================================================================

func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if api.DB != nil {
		if err := datafeed.HealthCheck(r.Context(), api.DB); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (api *API) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, err := api.Service.Analyze(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (api *API) HandleSentiment(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	score, err := api.Service.Sentiment(r.Context(), symbol)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    symbol,
		"sentiment": score,
	})
}

// symbols=AAPL,MSFT narrows the feed; default is the held positions
func (api *API) HandleGetNews(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = strings.Split(raw, ",")
	}
	articles, err := api.Service.News(r.Context(), symbols, 5)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"news":  articles,
		"count": len(articles),
	})
}

// symbols=AAPL,MSFT overrides the configured universe
func (api *API) HandleScreen(w http.ResponseWriter, r *http.Request) {
	var universe []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		universe = strings.Split(raw, ",")
	}
	results, err := api.Service.Screen(r.Context(), universe)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (api *API) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	recs := api.Service.ActiveRecommendations()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}

func (api *API) HandleRefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := api.Service.RunCycle(r.Context())
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}

type executeRequest struct {
	RecommendationID string `json:"recommendation_id"`
}

func (api *API) HandleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := api.Service.Execute(r.Context(), req.RecommendationID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.Log.Info().
		Str("user_id", UserID(r.Context())).
		Str("recommendation_id", trade.RecommendationID).
		Str("order_id", trade.OrderID).
		Msg("trade executed")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"trade":  trade,
	})
}

func (api *API) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	cancelled, err := api.Service.CancelOrder(r.Context(), orderID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"order_id":  orderID,
		"cancelled": cancelled,
	})
}

// start and end accept RFC3339 or YYYY-MM-DD; a bare end date covers that day
func (api *API) HandleRecentTrades(w http.ResponseWriter, r *http.Request) {
	start, err := parseBound(r.URL.Query().Get("start"), false)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	end, err := parseBound(r.URL.Query().Get("end"), true)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}

	trades, err := api.Service.ExecutedTrades(r.Context(), start, end)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

func parseBound(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, ok := formatting.ParseDate(raw)
	if !ok {
		return nil, errors.New("unrecognised date " + raw)
	}
	if endOfDay && !strings.Contains(raw, "T") {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (api *API) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := api.Service.Positions(r.Context())
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
	})
}

func (api *API) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	value, err := api.Service.PortfolioValue(ctx)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	positions, err := api.Service.Positions(ctx)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	var exposure float64
	for _, p := range positions {
		exposure += float64(p.Quantity) * p.CurrentPrice
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_value": value,
		"exposure":        exposure,
		"positions":       positions,
	})
}
