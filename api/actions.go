package api

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"usdo-ledger/core/model"
)

// transferBody is shared by every write that moves an amount to a receiver.
type transferBody struct {
	Asset  string `json:"asset,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Wrap   bool   `json:"wrap,omitempty"`
}

type transferReq struct {
	Asset  common.Address
	To     common.Address
	Amount *big.Int
	Wrap   bool
}

func readTransfer(r *http.Request, withAsset bool) (req transferReq, err error) {
	var body transferBody
	if err = decodeBody(r, &body); err != nil {
		return
	}
	if withAsset {
		if req.Asset, err = parseAddress("asset", body.Asset); err != nil {
			return
		}
	}
	if req.To, err = parseAddress("to", body.To); err != nil {
		return
	}
	if req.Amount, err = parseAmount("amount", body.Amount); err != nil {
		return
	}
	req.Wrap = body.Wrap
	return
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	req, err := readTransfer(r, true)
	if err != nil {
		renderErr(w, err)
		return
	}

	ctx, caller := r.Context(), callerFrom(r.Context())
	var quote model.MintQuote
	if req.Wrap {
		quote, err = s.gw.InstantMintAndWrap(ctx, caller, req.Asset, req.To, req.Amount)
	} else {
		quote, err = s.gw.InstantMint(ctx, caller, req.Asset, req.To, req.Amount)
	}
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, quote)
}

func (s *Server) instantRedeem(w http.ResponseWriter, r *http.Request) {
	req, err := readTransfer(r, false)
	if err != nil {
		renderErr(w, err)
		return
	}
	quote, err := s.gw.InstantRedeem(r.Context(), callerFrom(r.Context()), req.To, req.Amount)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, quote)
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	req, err := readTransfer(r, false)
	if err != nil {
		renderErr(w, err)
		return
	}
	quote, err := s.gw.Redeem(r.Context(), callerFrom(r.Context()), req.To, req.Amount)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, quote)
}

func (s *Server) redeemRequest(w http.ResponseWriter, r *http.Request) {
	req, err := readTransfer(r, false)
	if err != nil {
		renderErr(w, err)
		return
	}
	queued, err := s.gw.RedeemRequest(r.Context(), callerFrom(r.Context()), req.To, req.Amount)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, queued)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	req, err := readTransfer(r, false)
	if err != nil {
		renderErr(w, err)
		return
	}
	if err := s.gw.Transfer(callerFrom(r.Context()), req.To, req.Amount); err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]*big.Int{"amount": req.Amount})
}

func (s *Server) wrap(w http.ResponseWriter, r *http.Request) {
	req, err := readTransfer(r, false)
	if err != nil {
		renderErr(w, err)
		return
	}
	units, err := s.gw.Wrap(callerFrom(r.Context()), req.To, req.Amount)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]*big.Int{"wrapped": units})
}

func (s *Server) unwrap(w http.ResponseWriter, r *http.Request) {
	req, err := readTransfer(r, false)
	if err != nil {
		renderErr(w, err)
		return
	}
	amount, err := s.gw.Unwrap(callerFrom(r.Context()), req.To, req.Amount)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]*big.Int{"amount": amount})
}

type countBody struct {
	Count int `json:"count"`
}

func (s *Server) processQueue(w http.ResponseWriter, r *http.Request) {
	var body countBody
	if err := decodeBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}
	res, err := s.gw.ProcessRedemptionQueue(r.Context(), callerFrom(r.Context()), body.Count)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, res)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	var body countBody
	if err := decodeBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}
	cancelled, err := s.gw.Cancel(callerFrom(r.Context()), body.Count)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]interface{}{"cancelled": cancelled})
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	m, err := s.gw.AdvanceMultiplier(callerFrom(r.Context()))
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]*big.Int{"multiplier": m})
}

func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	req, err := readTransfer(r, true)
	if err != nil {
		renderErr(w, err)
		return
	}
	if err := s.gw.Fund(callerFrom(r.Context()), req.Asset, req.To, req.Amount); err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]*big.Int{"amount": req.Amount})
}
