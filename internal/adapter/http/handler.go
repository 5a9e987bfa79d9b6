package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"cnb-rate-service/internal/domain/model"
	"cnb-rate-service/internal/domain/ports"
	"cnb-rate-service/internal/metrics"
	"cnb-rate-service/internal/service"
	"cnb-rate-service/pkg/logger"
	"cnb-rate-service/pkg/utils"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ExchangeRateDto is one quoted rate: how many target currency units one
// source currency unit costs.
type ExchangeRateDto struct {
	SourceCurrency string      `json:"sourceCurrency"`
	Rate           json.Number `json:"rate"`
}

type ExchangeRateResponse struct {
	// ValidFor is null when upstream did not state a date.
	ValidFor       *time.Time        `json:"validFor"`
	TargetCurrency string            `json:"targetCurrency"`
	Rates          []ExchangeRateDto `json:"rates"`
}

type ConversionResponse struct {
	From     string      `json:"from"`
	To       string      `json:"to"`
	Amount   json.Number `json:"amount"`
	Result   json.Number `json:"result"`
	Rate     json.Number `json:"rate"`
	ValidFor *time.Time  `json:"validFor"`
}

type CachePolicyResponse struct {
	Band                       string  `json:"band"`
	DurationSeconds            float64 `json:"durationSeconds"`
	FailSafeMaxDurationSeconds float64 `json:"failSafeMaxDurationSeconds"`
}

type Handler struct {
	service ports.ExchangeService
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewHandler(service ports.ExchangeService, log *logger.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

func toResponse(set *model.RateSet) ExchangeRateResponse {
	return ExchangeRateResponse{
		ValidFor:       set.ValidFor,
		TargetCurrency: set.TargetCurrency.String(),
		Rates: lo.Map(set.Rates, func(r model.ExchangeRate, _ int) ExchangeRateDto {
			return ExchangeRateDto{
				SourceCurrency: r.SourceCurrency.String(),
				Rate:           json.Number(r.Rate.String()),
			}
		}),
	}
}

// parseCurrencies accepts both ?currencies=USD,EUR and repeated parameters.
func parseCurrencies(r *http.Request) []model.Currency {
	var out []model.Currency
	for _, v := range r.URL.Query()["currencies"] {
		for _, part := range strings.Split(v, ",") {
			out = append(out, model.ParseCurrency(part))
		}
	}
	return lo.Uniq(lo.Compact(out))
}

func (h *Handler) GetLatestRatesHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.RateRequestsTotal.Inc()

	entry, err := h.service.GetLatestRates(r.Context(), parseCurrencies(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.setCacheControl(w, entry)
	h.sendSuccessResponse(w, toResponse(entry.Rates))
}

func (h *Handler) GetRatesForDateHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.HistoricalRequestsTotal.Inc()

	date, err := utils.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "invalid date format, use YYYY-MM-DD")
		return
	}

	entry, err := h.service.GetRatesForDate(r.Context(), date, parseCurrencies(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.setCacheControl(w, entry)
	h.sendSuccessResponse(w, toResponse(entry.Rates))
}

func (h *Handler) ConvertCurrencyHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.ConversionRequestsTotal.Inc()

	from := model.ParseCurrency(r.URL.Query().Get("from"))
	to := model.ParseCurrency(r.URL.Query().Get("to"))
	amountStr := r.URL.Query().Get("amount")
	dateStr := r.URL.Query().Get("date")

	if from == "" || to == "" {
		h.sendErrorResponse(w, http.StatusBadRequest, "missing required parameters: from and to")
		return
	}

	amount := decimal.NewFromInt(1)
	if amountStr != "" {
		var err error
		amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			h.sendErrorResponse(w, http.StatusBadRequest, "invalid amount parameter")
			return
		}
	}

	var date time.Time
	if dateStr != "" {
		var err error
		date, err = utils.ParseDate(dateStr)
		if err != nil {
			h.sendErrorResponse(w, http.StatusBadRequest, "invalid date format, use YYYY-MM-DD")
			return
		}
	}

	request := model.ConversionRequest{
		FromCurrency: from,
		ToCurrency:   to,
		Amount:       amount,
		Date:         date,
	}

	result, err := h.service.ConvertCurrency(r.Context(), request)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendSuccessResponse(w, ConversionResponse{
		From:     result.FromCurrency.String(),
		To:       result.ToCurrency.String(),
		Amount:   json.Number(result.FromAmount.String()),
		Result:   json.Number(result.ToAmount.Round(6).String()),
		Rate:     json.Number(result.Rate.Round(6).String()),
		ValidFor: result.ValidFor,
	})
}

func (h *Handler) GetCachePolicyHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.CurrentPolicy()
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendSuccessResponse(w, CachePolicyResponse{
		Band:                       p.Band.String(),
		DurationSeconds:            p.Duration.Seconds(),
		FailSafeMaxDurationSeconds: p.FailSafeMaxDuration.Seconds(),
	})
}

// setCacheControl advertises only the freshness the served entry has left,
// so downstream caches expire it no later than this service does. A stale
// fallback gets max-age=0.
func (h *Handler) setCacheControl(w http.ResponseWriter, entry *model.CachedRates) {
	maxAge := entry.MaxAge(h.now()) / time.Second
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int64(maxAge)))
}

func (h *Handler) sendSuccessResponse(w http.ResponseWriter, data interface{}) {
	response := Response{
		Success: true,
		Data:    data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := Response{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode error response", "error", err)
	}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorMessage := "internal server error"

	switch {
	case errors.Is(err, service.ErrInvalidCurrency):
		statusCode = http.StatusBadRequest
		errorMessage = "invalid currency"
	case errors.Is(err, service.ErrDateOutOfRange):
		statusCode = http.StatusBadRequest
		errorMessage = "date is outside allowed range"
	case errors.Is(err, service.ErrRateNotFound):
		statusCode = http.StatusNotFound
		errorMessage = "exchange rate not found"
	case errors.Is(err, service.ErrExternalAPIFailure):
		statusCode = http.StatusServiceUnavailable
		errorMessage = "external API failure"
	case errors.Is(err, service.ErrInvalidAmount):
		statusCode = http.StatusBadRequest
		errorMessage = "invalid amount"
	case errors.Is(err, service.ErrCachePolicy):
		errorMessage = "cache policy misconfigured"
	}

	h.log.Error("Service error", "error", err, "status_code", statusCode)
	h.sendErrorResponse(w, statusCode, errorMessage)
}
