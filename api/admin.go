package api

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"github.com/twitchtv/twirp"

	"usdo-ledger/core/asset"
	"usdo-ledger/core/model"
)

func (s *Server) adminRoutes(r chi.Router) {
	r.Post("/settings/{name}", s.setting)
	r.Post("/multiplier", s.updateMultiplier)
	r.Post("/kyc/grant", s.accounts(s.gw.GrantKycInBulk))
	r.Post("/kyc/revoke", s.accounts(s.gw.RevokeKycInBulk))
	r.Post("/ban", s.accounts(func(caller common.Address, list []common.Address) error {
		return s.gw.Ban(caller, list...)
	}))
	r.Post("/unban", s.accounts(func(caller common.Address, list []common.Address) error {
		return s.gw.Unban(caller, list...)
	}))
	r.Post("/pause/{target}", s.pause(true))
	r.Post("/unpause/{target}", s.pause(false))
	r.Post("/roles/grant", s.role(true))
	r.Post("/roles/revoke", s.role(false))
	r.Post("/assets", s.setAsset)
	r.Post("/assets/remove", s.removeAsset)
}

type valueBody struct {
	Value string `json:"value"`
}

type setter func(caller common.Address, value string) error

func bigSetter(fn func(common.Address, *big.Int) error) setter {
	return func(caller common.Address, value string) error {
		v, err := parseAmount("value", value)
		if err != nil {
			return err
		}
		return fn(caller, v)
	}
}

// capSetter treats an empty value or "none" as no cap.
func capSetter(fn func(common.Address, *big.Int) error) setter {
	return func(caller common.Address, value string) error {
		if value == "" || strings.EqualFold(value, "none") {
			return fn(caller, nil)
		}
		return bigSetter(fn)(caller, value)
	}
}

func uintSetter(fn func(common.Address, uint64) error) setter {
	return func(caller common.Address, value string) error {
		if !govalidator.IsInt(value) {
			return twirp.InvalidArgumentError("value", "must be an integer")
		}
		v, err := cast.ToUint64E(value)
		if err != nil {
			return twirp.InvalidArgumentError("value", err.Error())
		}
		return fn(caller, v)
	}
}

func (s *Server) setters() map[string]setter {
	return map[string]setter{
		"apy":              uintSetter(s.gw.UpdateAPY),
		"time_buffer":      uintSetter(s.gw.SetTimeBuffer),
		"mint_fee":         uintSetter(s.gw.UpdateMintFee),
		"redeem_fee":       uintSetter(s.gw.UpdateRedeemFee),
		"max_stale_period": uintSetter(s.gw.SetMaxStalePeriod),
		"mint_duration":    uintSetter(s.gw.SetMintDuration),
		"redeem_duration":  uintSetter(s.gw.SetRedeemDuration),
		"total_supply_cap": capSetter(s.gw.SetTotalSupplyCap),
		"first_deposit":    bigSetter(s.gw.SetFirstDepositAmount),
		"mint_minimum":     bigSetter(s.gw.SetMintMinimum),
		"mint_limit":       bigSetter(s.gw.SetMintLimit),
		"redeem_minimum":   bigSetter(s.gw.SetRedeemMinimum),
		"redeem_limit":     bigSetter(s.gw.SetRedeemLimit),
	}
}

func (s *Server) setting(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	set, ok := s.setters()[name]
	if !ok {
		renderErr(w, twirp.NotFoundError("unknown setting "+name))
		return
	}
	var body valueBody
	if err := decodeBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}
	if err := set(callerFrom(r.Context()), body.Value); err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]string{name: body.Value})
}

func (s *Server) updateMultiplier(w http.ResponseWriter, r *http.Request) {
	var body valueBody
	if err := decodeBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}
	v, err := parseAmount("value", body.Value)
	if err != nil {
		renderErr(w, err)
		return
	}
	if err := s.gw.UpdateMultiplier(callerFrom(r.Context()), v); err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]*big.Int{"multiplier": v})
}

type accountsBody struct {
	Accounts []string `json:"accounts"`
}

func (s *Server) accounts(fn func(common.Address, []common.Address) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accountsBody
		if err := decodeBody(r, &body); err != nil {
			renderErr(w, err)
			return
		}
		list, err := parseAddresses("accounts", body.Accounts)
		if err != nil {
			renderErr(w, err)
			return
		}
		if err := fn(callerFrom(r.Context()), list); err != nil {
			renderErr(w, err)
			return
		}
		renderJSON(w, map[string]int{"accounts": len(list)})
	}
}

func (s *Server) pause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "target")
		if !govalidator.IsIn(target, "mint", "redeem", "ledger") {
			renderErr(w, twirp.InvalidArgumentError("target", "must be mint, redeem or ledger"))
			return
		}

		caller := callerFrom(r.Context())
		var err error
		switch {
		case target == "mint" && paused:
			err = s.gw.PauseMint(caller)
		case target == "mint":
			err = s.gw.UnpauseMint(caller)
		case target == "redeem" && paused:
			err = s.gw.PauseRedeem(caller)
		case target == "redeem":
			err = s.gw.UnpauseRedeem(caller)
		case paused:
			err = s.gw.PauseLedger(caller)
		default:
			err = s.gw.UnpauseLedger(caller)
		}
		if err != nil {
			renderErr(w, err)
			return
		}
		renderJSON(w, map[string]bool{target: paused})
	}
}

type roleBody struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

func (s *Server) role(grant bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body roleBody
		if err := decodeBody(r, &body); err != nil {
			renderErr(w, err)
			return
		}
		role := model.Role(body.Role)
		if !role.Valid() {
			renderErr(w, twirp.InvalidArgumentError("role", "unknown role"))
			return
		}
		account, err := parseAddress("account", body.Account)
		if err != nil {
			renderErr(w, err)
			return
		}

		caller := callerFrom(r.Context())
		if grant {
			err = s.gw.GrantRole(caller, role, account)
		} else {
			err = s.gw.RevokeRole(caller, role, account)
		}
		if err != nil {
			renderErr(w, err)
			return
		}
		renderJSON(w, map[string]bool{string(role): grant})
	}
}

// assetBody configures an asset. A feed with a price installs a fixed price
// source; a feed alone is resolved through the server's feed resolver.
type assetBody struct {
	Asset         string `json:"asset"`
	Feed          string `json:"feed,omitempty"`
	Price         string `json:"price,omitempty"`
	PriceDecimals uint8  `json:"price_decimals,omitempty"`
}

func (s *Server) setAsset(w http.ResponseWriter, r *http.Request) {
	var body assetBody
	if err := decodeBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}
	assetAddr, err := parseAddress("asset", body.Asset)
	if err != nil {
		renderErr(w, err)
		return
	}

	cfg := model.AssetConfig{Asset: assetAddr, IsSupported: true}
	var feed asset.PriceSource
	if body.Feed != "" {
		if cfg.PriceFeed, err = parseAddress("feed", body.Feed); err != nil {
			renderErr(w, err)
			return
		}
		if feed, err = s.priceSource(cfg.PriceFeed, body); err != nil {
			renderErr(w, err)
			return
		}
	}

	if err := s.gw.SetAssetConfig(r.Context(), callerFrom(r.Context()), cfg, feed); err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, cfg)
}

func (s *Server) priceSource(feed common.Address, body assetBody) (asset.PriceSource, error) {
	if body.Price != "" {
		price, err := parseAmount("price", body.Price)
		if err != nil {
			return nil, err
		}
		return &asset.FixedPrice{Price: price, FeedDecimals: body.PriceDecimals, Now: s.now}, nil
	}
	if s.feeds == nil {
		return nil, twirp.InvalidArgumentError("price", "required when no feed resolver is configured")
	}
	return s.feeds(feed)
}

func (s *Server) removeAsset(w http.ResponseWriter, r *http.Request) {
	var body assetBody
	if err := decodeBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}
	assetAddr, err := parseAddress("asset", body.Asset)
	if err != nil {
		renderErr(w, err)
		return
	}
	if err := s.gw.RemoveAsset(callerFrom(r.Context()), assetAddr); err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]string{"removed": assetAddr.Hex()})
}
