// Package api serves the gateway over HTTP. Reads are plain GETs; writes are
// POSTs acting for the account named in the X-Caller header.
package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"github.com/twitchtv/twirp"

	"usdo-ledger/core"
	"usdo-ledger/core/asset"
	"usdo-ledger/core/model"
)

const CallerHeader = "X-Caller"

// EventSource lists recently committed events.
type EventSource interface {
	Events() []model.Event
}

type Server struct {
	gw     *core.Gateway
	feeds  asset.FeedResolver
	events EventSource
	now    func() uint64
}

// New builds the HTTP surface. feeds and events may be nil; without feeds
// only fixed-price feeds can be configured over the API, and without events
// GET /events is not served.
func New(gw *core.Gateway, feeds asset.FeedResolver, events EventSource, now func() uint64) *Server {
	if now == nil {
		now = core.WallClock
	}
	return &Server{gw: gw, feeds: feeds, events: events, now: now}
}

func (s *Server) Handler() http.Handler {
	m := chi.NewMux()
	m.Use(middleware.Recoverer)
	m.Use(middleware.RealIP)
	m.Use(middleware.Logger)
	m.Use(middleware.Heartbeat("/hc"))
	m.Use(cors.AllowAll().Handler)

	m.Get("/supply", s.supply)
	m.Get("/multiplier", s.multiplier)
	m.Get("/accounts/{address}", s.account)
	m.Get("/queue", s.queueLength)
	m.Get("/queue/{index}", s.queueEntry)
	m.Get("/redemptions/{address}", s.pendingRedemption)
	m.Get("/preview/mint", s.previewMint)
	m.Get("/preview/redeem", s.previewRedeem)
	m.Get("/convert", s.convert)
	m.Get("/limits", s.limits)
	m.Get("/assets", s.assets)
	if s.events != nil {
		m.Get("/events", s.recentEvents)
	}

	m.Group(func(r chi.Router) {
		r.Use(requireCaller)

		r.Post("/mint", s.mint)
		r.Post("/redeem", s.redeem)
		r.Post("/redeem/instant", s.instantRedeem)
		r.Post("/redeem/request", s.redeemRequest)
		r.Post("/transfer", s.transfer)
		r.Post("/wrap", s.wrap)
		r.Post("/unwrap", s.unwrap)

		r.Post("/queue/process", s.processQueue)
		r.Post("/queue/cancel", s.cancel)
		r.Post("/multiplier/advance", s.advance)

		r.Route("/admin", s.adminRoutes)
		r.Post("/fund", s.fund)
	})

	return m
}

type callerKey struct{}

func requireCaller(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get(CallerHeader)
		if !common.IsHexAddress(h) {
			_ = twirp.WriteError(w, twirp.Unauthenticated.Error("X-Caller header must hold an address"))
			return
		}
		ctx := context.WithValue(r.Context(), callerKey{}, common.HexToAddress(h))
		next.ServeHTTP(w, r.WithContext(ctx))
	}
	return http.HandlerFunc(fn)
}

func callerFrom(ctx context.Context) common.Address {
	a, _ := ctx.Value(callerKey{}).(common.Address)
	return a
}

func renderJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return twirp.InvalidArgument.Error("malformed body: " + err.Error())
	}
	return nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, twirp.InvalidArgumentError(field, "must be an address")
	}
	return common.HexToAddress(s), nil
}

func parseAddresses(field string, list []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(list))
	for _, s := range list {
		a, err := parseAddress(field, s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// parseAmount reads a raw integer amount in the smallest unit.
func parseAmount(field, s string) (*big.Int, error) {
	if !govalidator.IsInt(s) {
		return nil, twirp.InvalidArgumentError(field, "must be an integer")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, twirp.InvalidArgumentError(field, "must be a non-negative integer")
	}
	return v, nil
}

// display renders a raw amount with its decimals for humans.
func display(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}
