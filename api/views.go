package api

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"github.com/twitchtv/twirp"

	"usdo-ledger/core/model"
)

type supplyView struct {
	TotalSupply   *big.Int `json:"total_supply"`
	TotalShares   *big.Int `json:"total_shares"`
	TotalWrapped  *big.Int `json:"total_wrapped"`
	SupplyDisplay string   `json:"supply_display"`
}

func (s *Server) supply(w http.ResponseWriter, r *http.Request) {
	total := s.gw.TotalSupply()
	renderJSON(w, supplyView{
		TotalSupply:   total,
		TotalShares:   s.gw.TotalShares(),
		TotalWrapped:  s.gw.TotalWrapped(),
		SupplyDisplay: display(total, model.LedgerDecimals),
	})
}

func (s *Server) multiplier(w http.ResponseWriter, r *http.Request) {
	curr, next := s.gw.GetBonusMultiplier()
	renderJSON(w, map[string]interface{}{
		"current": curr,
		"next":    next,
		"due":     s.gw.AdvanceDue(),
	})
}

type accountView struct {
	model.Account
	BalanceDisplay string `json:"balance_display"`
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		renderErr(w, err)
		return
	}
	a := s.gw.Account(addr)
	renderJSON(w, accountView{Account: a, BalanceDisplay: display(a.Balance, model.LedgerDecimals)})
}

func (s *Server) queueLength(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, map[string]int{"length": s.gw.GetRedemptionQueueLength()})
}

func (s *Server) queueEntry(w http.ResponseWriter, r *http.Request) {
	index, err := cast.ToIntE(chi.URLParam(r, "index"))
	if err != nil {
		renderErr(w, twirp.InvalidArgumentError("index", "must be an integer"))
		return
	}
	req, err := s.gw.GetRedemptionQueueInfo(index)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, req)
}

func (s *Server) pendingRedemption(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]interface{}{
		"receiver": addr,
		"pending":  s.gw.GetRedemptionUserInfo(addr),
	})
}

func (s *Server) previewMint(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assetAddr, err := parseAddress("asset", q.Get("asset"))
	if err != nil {
		renderErr(w, err)
		return
	}
	amount, err := parseAmount("amount", q.Get("amount"))
	if err != nil {
		renderErr(w, err)
		return
	}
	quote, err := s.gw.PreviewMint(r.Context(), assetAddr, amount)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, quote)
}

func (s *Server) previewRedeem(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount("amount", r.URL.Query().Get("amount"))
	if err != nil {
		renderErr(w, err)
		return
	}
	quote, err := s.gw.PreviewRedeem(r.Context(), amount)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, quote)
}

// convert answers ?shares=N or ?amount=N with the other side of the ledger
// conversion at the current multiplier.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Has("shares"):
		shares, err := parseAmount("shares", q.Get("shares"))
		if err != nil {
			renderErr(w, err)
			return
		}
		renderJSON(w, map[string]*big.Int{"shares": shares, "amount": s.gw.ConvertToAmount(shares)})
	case q.Has("amount"):
		amount, err := parseAmount("amount", q.Get("amount"))
		if err != nil {
			renderErr(w, err)
			return
		}
		renderJSON(w, map[string]*big.Int{"amount": amount, "shares": s.gw.ConvertToShares(amount)})
	default:
		renderErr(w, twirp.RequiredArgumentError("amount"))
	}
}

func (s *Server) limits(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, s.gw.Limits())
}

func (s *Server) assets(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, s.gw.Assets())
}

// recentEvents lists committed events oldest first; ?limit=N keeps the
// newest N.
func (s *Server) recentEvents(w http.ResponseWriter, r *http.Request) {
	events := s.events.Events()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := cast.ToIntE(raw)
		if err != nil || limit < 0 {
			renderErr(w, twirp.InvalidArgumentError("limit", "must be a non-negative integer"))
			return
		}
		if limit < len(events) {
			events = events[len(events)-limit:]
		}
	}
	if events == nil {
		events = []model.Event{}
	}
	renderJSON(w, events)
}
