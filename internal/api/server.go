// Package api serves the indexed read models over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/ids"
	"perp-indexer/internal/logging"
	"perp-indexer/internal/observability"
	"perp-indexer/internal/prices"
	"perp-indexer/internal/storage"
)

// PriceDecimals is the fixed-point precision of USD prices.
const PriceDecimals = 30

type chainView struct {
	store  storage.EntityStore
	prices *prices.TokenPriceStore
}

// Server provides the read API for one or more chains.
type Server struct {
	addr   string
	chains map[string]*chainView
	router *mux.Router
	logger log.FieldLogger
}

// NewServer creates a server over the given per-chain stores.
func NewServer(addr string, stores map[string]storage.EntityStore, logger log.FieldLogger) *Server {
	s := &Server{
		addr:   addr,
		chains: make(map[string]*chainView, len(stores)),
		router: mux.NewRouter(),
		logger: logging.Component(logger, "api"),
	}
	for name, store := range stores {
		s.chains[name] = &chainView{store: store, prices: prices.NewTokenPriceStore(store)}
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(metricsMiddleware)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/v1/{chain}").Subrouter()
	v1.HandleFunc("/transactions/{hash}", s.handleTransaction).Methods("GET")
	v1.HandleFunc("/prices/{token}", s.handlePrice).Methods("GET")
	v1.HandleFunc("/prices/{token}/convert", s.handleConvert).Methods("GET")
	v1.HandleFunc("/candles/{token}/{resolution}/{bucket}", s.handleCandle).Methods("GET")
	v1.HandleFunc("/claims/{tx}/{account}/{eventName}", s.handleClaimAction).Methods("GET")
	v1.HandleFunc("/collateral-claims/{tx}/{account}/{eventName}", s.handleClaimCollateralAction).Methods("GET")
	v1.HandleFunc("/orders/{key}", s.handleOrder).Methods("GET")
}

// Router returns the HTTP router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.WithField("addr", s.addr).Info("api server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		observability.RecordAPIRequest(route, rec.status)
	})
}

// chain resolves the {chain} path variable, writing a 404 if unknown.
func (s *Server) chain(w http.ResponseWriter, r *http.Request) (*chainView, bool) {
	name := mux.Vars(r)["chain"]
	c, ok := s.chains[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown chain "+name)
		return nil, false
	}
	return c, true
}

// writeLoadError maps a store error to a response.
func (s *Server) writeLoadError(w http.ResponseWriter, what string, err error) {
	if storage.IsNotFound(err) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.logger.WithError(err).WithField("entity", what).Error("load failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.chains))
	for name := range s.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"chains": names,
	})
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chain(w, r)
	if !ok {
		return
	}
	tx, err := storage.Load[domain.Transaction](r.Context(), c.store, ids.Transaction(mux.Vars(r)["hash"]))
	if err != nil {
		s.writeLoadError(w, "transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// usd renders a 30-decimal fixed-point value.
func usd(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -PriceDecimals).String()
}

func raw(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// PriceResponse is a token price with both raw and decimal renderings.
type PriceResponse struct {
	Token       string `json:"token"`
	MinPrice    string `json:"minPrice"`
	MaxPrice    string `json:"maxPrice"`
	MinPriceUsd string `json:"minPriceUsd"`
	MaxPriceUsd string `json:"maxPriceUsd"`
	UpdatedAt   int64  `json:"updatedAt"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chain(w, r)
	if !ok {
		return
	}
	token := strings.ToLower(mux.Vars(r)["token"])
	p, err := storage.Load[domain.TokenPrice](r.Context(), c.store, token)
	if err != nil {
		s.writeLoadError(w, "price", err)
		return
	}
	writeJSON(w, http.StatusOK, PriceResponse{
		Token:       p.ID,
		MinPrice:    raw(p.MinPrice),
		MaxPrice:    raw(p.MaxPrice),
		MinPriceUsd: usd(p.MinPrice),
		MaxPriceUsd: usd(p.MaxPrice),
		UpdatedAt:   p.UpdatedAt,
	})
}

// ConvertResponse is the result of a USD/amount conversion.
type ConvertResponse struct {
	Token     string `json:"token"`
	Direction string `json:"direction"`
	Input     string `json:"input"`
	Output    string `json:"output"`
}

// handleConvert converts ?usd=<raw> to a token amount or ?amount=<raw> to USD.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chain(w, r)
	if !ok {
		return
	}
	token := strings.ToLower(mux.Vars(r)["token"])
	q := r.URL.Query()

	var (
		input string
		dir   prices.Direction
	)
	switch {
	case q.Get("usd") != "" && q.Get("amount") == "":
		input, dir = q.Get("usd"), prices.UsdToAmount
	case q.Get("amount") != "" && q.Get("usd") == "":
		input, dir = q.Get("amount"), prices.AmountToUsd
	default:
		writeError(w, http.StatusBadRequest, "exactly one of usd or amount is required")
		return
	}

	value, ok := new(big.Int).SetString(input, 10)
	if !ok || value.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "value must be a non-negative integer")
		return
	}

	var (
		out *big.Int
		err error
	)
	if dir == prices.UsdToAmount {
		out, err = c.prices.UsdToAmount(r.Context(), token, value)
	} else {
		out, err = c.prices.AmountToUsd(r.Context(), token, value)
	}
	if err != nil {
		s.writeLoadError(w, "price", err)
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		Token:     token,
		Direction: dir.String(),
		Input:     value.String(),
		Output:    out.String(),
	})
}

// CandleResponse is an OHLC bar with decimal USD prices.
type CandleResponse struct {
	Token     string `json:"token"`
	Period    string `json:"period"`
	Timestamp int64  `json:"timestamp"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
}

// handleCandle accepts any timestamp inside the bucket.
func (s *Server) handleCandle(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chain(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	res, err := domain.ParseResolution(vars["resolution"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ts, err := strconv.ParseInt(vars["bucket"], 10, 64)
	if err != nil || ts < 0 {
		writeError(w, http.StatusBadRequest, "bucket must be a unix timestamp")
		return
	}
	bucket, err := res.BucketStart(ts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token := strings.ToLower(vars["token"])
	candle, err := storage.Load[domain.Candle](r.Context(), c.store, ids.Candle(token, res, bucket))
	if err != nil {
		s.writeLoadError(w, "candle", err)
		return
	}
	writeJSON(w, http.StatusOK, CandleResponse{
		Token:     candle.Token,
		Period:    string(candle.Period),
		Timestamp: candle.Timestamp,
		Open:      usd(candle.Open),
		High:      usd(candle.High),
		Low:       usd(candle.Low),
		Close:     usd(candle.Close),
	})
}

func claimID(r *http.Request) string {
	vars := mux.Vars(r)
	return ids.ClaimAction(ids.Transaction(vars["tx"]), strings.ToLower(vars["account"]), vars["eventName"])
}

func (s *Server) handleClaimAction(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chain(w, r)
	if !ok {
		return
	}
	action, err := storage.Load[domain.ClaimAction](r.Context(), c.store, claimID(r))
	if err != nil {
		s.writeLoadError(w, "claim action", err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleClaimCollateralAction(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chain(w, r)
	if !ok {
		return
	}
	action, err := storage.Load[domain.ClaimCollateralAction](r.Context(), c.store, claimID(r))
	if err != nil {
		s.writeLoadError(w, "claim collateral action", err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chain(w, r)
	if !ok {
		return
	}
	order, err := storage.Load[domain.Order](r.Context(), c.store, ids.Order(mux.Vars(r)["key"]))
	if err != nil {
		s.writeLoadError(w, "order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
