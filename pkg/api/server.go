package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/behype/params"
	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/order"
	"github.com/uhyunpark/behype/pkg/service"
)

// Channels clients can subscribe to over /ws.
const (
	ChannelQuotes = "quotes"
	ChannelOrders = "orders"
)

const maxBodyBytes = 1 << 16

// Server handles REST API and WebSocket connections
type Server struct {
	svc      *service.Service
	router   *mux.Router
	hub      *Hub // WebSocket hub
	validate *validator.Validate
	origins  []string
	log      *zap.SugaredLogger
	srv      *http.Server
}

// NewServer creates the API server and subscribes the hub to quote refreshes.
func NewServer(svc *service.Service, cfg params.Node, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	sugar := log.Sugar().Named("api")

	s := &Server{
		svc:      svc,
		router:   mux.NewRouter(),
		hub:      NewHub(sugar.Named("ws")),
		validate: validator.New(),
		origins:  cfg.CORSOrigins,
		log:      sugar,
	}
	s.setupRoutes()
	svc.OnQuotes(s.BroadcastQuotes)
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market data
	api.HandleFunc("/quotes", s.handleGetQuotes).Methods("GET")
	api.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	api.HandleFunc("/candles/{asset}", s.handleGetCandles).Methods("GET")

	// Wallet
	api.HandleFunc("/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/fills", s.handleGetFills).Methods("GET")
	api.HandleFunc("/orders/open", s.handleGetOpenOrders).Methods("GET")
	api.HandleFunc("/orders/journal", s.handleGetJournal).Methods("GET")

	// Order submission
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Infow("server_starting", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, at := s.svc.Quotes()
	if len(quotes) == 0 {
		if _, err := s.svc.RefreshQuotes(r.Context()); err != nil {
			respondError(w, http.StatusBadGateway, "quotes_unavailable", err.Error())
			return
		}
		quotes, at = s.svc.Quotes()
	}

	resp := QuotesResponse{Quotes: quotes}
	if !at.IsZero() {
		resp.UpdatedAt = at.UnixMilli()
	}
	respondJSON(w, resp)
}

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	assets := s.svc.Assets()
	response := make([]AssetInfo, len(assets))
	for i, a := range assets {
		response[i] = assetInfo(a)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetCandles(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = string(market.Timeframe1h)
	}
	tf, err := market.ParseTimeframe(interval)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_interval", err.Error())
		return
	}

	candles, err := s.svc.Candles(r.Context(), asset, tf)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, CandlesResponse{Asset: asset, Interval: interval, Candles: candles})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.svc.RefreshBalances(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	out := make([]BalanceInfo, len(balances))
	for i, b := range balances {
		out[i] = BalanceInfo{
			Coin:      b.Coin,
			Total:     b.Total.String(),
			Hold:      b.Hold.String(),
			Available: b.Free().String(),
		}
	}
	respondJSON(w, BalancesResponse{Address: s.svc.User(), Balances: out})
}

func (s *Server) handleGetFills(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days")
	if !ok {
		return
	}
	if days > service.MaxFillsDays {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("days must be at most %d", service.MaxFillsDays))
		return
	}
	fills, err := s.svc.Fills(r.Context(), days)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, FillsResponse{DaysBack: days, Fills: fills})
}

func (s *Server) handleGetOpenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.OpenOrders(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, OpenOrdersResponse{Orders: orders})
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	if limit == 0 {
		limit = 50
	}
	entries, err := s.svc.Journal(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal_unavailable", err.Error())
		return
	}
	respondJSON(w, JournalResponse{Entries: entries})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var p service.PlaceParams
	if !s.decode(w, r, &p) {
		return
	}
	tif, err := order.ParseTimeInForce(string(p.TimeInForce))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	p.TimeInForce = tif

	placed, err := s.svc.PlaceOrder(r.Context(), p)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	res := placed.Result
	status := "resting"
	if res.Filled() {
		status = "filled"
	}
	s.log.Infow("order_accepted", "entry", placed.EntryID, "asset", p.Asset, "side", p.Side.String(), "status", status)
	s.hub.BroadcastToChannel(ChannelOrders, OrderUpdate{
		Type:    "order",
		Asset:   placed.Request.Asset,
		Side:    placed.Request.Side,
		OrderID: res.OrderID,
		Status:  status,
		Request: placed.Request,
	})

	respondJSON(w, SubmitOrderResponse{
		Status:     status,
		EntryID:    placed.EntryID,
		OrderID:    res.OrderID,
		Price:      placed.Request.PriceString,
		Size:       placed.Request.SizeString,
		FilledSize: res.FilledSize,
		AvgPrice:   res.AvgPrice,
		Message:    res.Message,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.CancelOrder(r.Context(), req.Asset, req.OrderID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.hub.BroadcastToChannel(ChannelOrders, OrderUpdate{
		Type:    "order",
		Asset:   req.Asset,
		OrderID: &req.OrderID,
		Status:  "cancelled",
	})
	respondJSON(w, CancelOrderResponse{Status: "cancelled", OrderID: req.OrderID, Message: res.Message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, at := s.svc.Quotes()
	resp := map[string]any{"status": "ok", "clients": s.hub.ClientCount()}
	if !at.IsZero() {
		resp["quotesAt"] = at.UnixMilli()
	}
	respondJSON(w, resp)
}

// ==============================
// Broadcast Methods
// ==============================

// BroadcastQuotes pushes a refreshed quote table to subscribers, stamped with
// the time the service recorded for it.
func (s *Server) BroadcastQuotes(quotes []market.AssetQuote) {
	_, at := s.svc.Quotes()
	s.hub.BroadcastToChannel(ChannelQuotes, QuotesUpdate{
		Type:      "quotes",
		Quotes:    quotes,
		Timestamp: at.UnixMilli(),
	})
}

// ==============================
// Helper Functions
// ==============================

// decode reads a JSON body into v and runs struct validation.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// respondServiceError maps service errors to status codes.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var (
		verr *order.ValidationError
		perr *market.ParseError
		ext  *order.ExternalFailure
	)
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusUnprocessableEntity, string(verr.Kind), verr.Error())
	case errors.As(err, &perr):
		respondError(w, http.StatusBadRequest, "parse_error", perr.Error())
	case errors.As(err, &ext):
		respondError(w, http.StatusBadGateway, "exchange_rejected", ext.Message)
	case errors.Is(err, service.ErrUnknownAsset):
		respondError(w, http.StatusNotFound, "unknown_asset", err.Error())
	default:
		s.log.Warnw("request_failed", "err", err)
		respondError(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

// intParam reads an optional non-negative integer query parameter.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
