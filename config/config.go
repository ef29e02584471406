// Package config loads usdod settings from a yaml file, an optional .env
// file and USDO_ prefixed environment variables.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"usdo-ledger/core"
	"usdo-ledger/core/limiter"
	"usdo-ledger/core/model"
)

const EnvPrefix = "USDO"

type Window struct {
	Limit    string        `mapstructure:"limit"`
	Minimum  string        `mapstructure:"minimum"`
	Duration time.Duration `mapstructure:"duration"`
}

type Asset struct {
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	// Feed is the price feed address. With Price set the feed is simulated
	// at that fixed price, otherwise it is read from chain.
	Feed          string `mapstructure:"feed"`
	Price         string `mapstructure:"price"`
	PriceDecimals uint8  `mapstructure:"price_decimals"`
}

type Venue struct {
	Enabled bool   `mapstructure:"enabled"`
	Account string `mapstructure:"account"`
	Price   string `mapstructure:"price"`
	FeeBps  uint64 `mapstructure:"fee_bps"`
}

type Config struct {
	DataDir        string        `mapstructure:"data_dir"`
	History        int           `mapstructure:"history"`
	HTTPAddr       string        `mapstructure:"http_addr"`
	LogLevel       string        `mapstructure:"log_level"`
	ChainURL       string        `mapstructure:"chain_url"`
	Clock          string        `mapstructure:"clock"`
	ClockInterval  time.Duration `mapstructure:"clock_interval"`
	KeeperInterval time.Duration `mapstructure:"keeper_interval"`
	Keeper         string        `mapstructure:"keeper"`

	Treasury   string `mapstructure:"treasury"`
	FeeTo      string `mapstructure:"fee_to"`
	Custody    string `mapstructure:"custody"`
	Settlement string `mapstructure:"settlement"`
	Reserve    string `mapstructure:"reserve"`
	Admin      string `mapstructure:"admin"`

	Roles map[string][]string `mapstructure:"roles"`
	Kyc   []string            `mapstructure:"kyc"`

	MintFeeBps         uint64        `mapstructure:"mint_fee_bps"`
	RedeemFeeBps       uint64        `mapstructure:"redeem_fee_bps"`
	APYBps             uint64        `mapstructure:"apy_bps"`
	TimeBuffer         time.Duration `mapstructure:"time_buffer"`
	MaxStalePeriod     time.Duration `mapstructure:"max_stale_period"`
	FirstDepositAmount string        `mapstructure:"first_deposit_amount"`
	TotalSupplyCap     string        `mapstructure:"total_supply_cap"`
	Mint               Window        `mapstructure:"mint"`
	Redeem             Window        `mapstructure:"redeem"`

	Assets []Asset `mapstructure:"assets"`
	Venue  Venue   `mapstructure:"venue"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "usdo.db")
	v.SetDefault("history", 16)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("clock", "wall")
	v.SetDefault("clock_interval", 3*time.Second)
	v.SetDefault("keeper_interval", time.Minute)
	v.SetDefault("apy_bps", 500)
	v.SetDefault("time_buffer", 24*time.Hour)
	v.SetDefault("max_stale_period", 24*time.Hour)
	v.SetDefault("first_deposit_amount", "100")
	v.SetDefault("mint.limit", "10000000")
	v.SetDefault("mint.minimum", "1")
	v.SetDefault("mint.duration", 24*time.Hour)
	v.SetDefault("redeem.limit", "10000000")
	v.SetDefault("redeem.minimum", "1")
	v.SetDefault("redeem.duration", 24*time.Hour)
	v.SetDefault("venue.price", "1")
}

// Load reads path, or usdod.yaml from the working directory when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("loaded .env")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("usdod")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	required := []struct{ name, addr string }{
		{"treasury", c.Treasury},
		{"custody", c.Custody},
		{"settlement", c.Settlement},
		{"admin", c.Admin},
	}
	for _, r := range required {
		if !common.IsHexAddress(r.addr) {
			return fmt.Errorf("%s: %q is not an address", r.name, r.addr)
		}
	}
	if c.Clock != "wall" && c.Clock != "chain" {
		return fmt.Errorf("clock must be wall or chain, got %q", c.Clock)
	}
	if c.Clock == "chain" && c.ChainURL == "" {
		return fmt.Errorf("clock chain needs chain_url")
	}
	for _, a := range c.Assets {
		if !common.IsHexAddress(a.Address) {
			return fmt.Errorf("asset %q is not an address", a.Address)
		}
		if a.Feed != "" && a.Price == "" && c.ChainURL == "" {
			return fmt.Errorf("asset %s reads feed %s but chain_url is empty", a.Address, a.Feed)
		}
	}
	if c.Venue.Enabled && c.Reserve == "" {
		return fmt.Errorf("venue needs a reserve asset")
	}
	return nil
}

func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Address parses a configured address; empty yields the zero address.
func Address(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func Addresses(list []string) []common.Address {
	out := make([]common.Address, 0, len(list))
	for _, s := range list {
		out = append(out, common.HexToAddress(s))
	}
	return out
}

// Units converts a human amount such as "1.5" into an integer with the given
// decimals, truncating extra digits.
func Units(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	return d.Shift(int32(decimals)).BigInt(), nil
}

func (w Window) limiter() (limiter.Window, error) {
	limit, err := Units(w.Limit, model.LedgerDecimals)
	if err != nil {
		return limiter.Window{}, err
	}
	minimum, err := Units(w.Minimum, model.LedgerDecimals)
	if err != nil {
		return limiter.Window{}, err
	}
	return limiter.NewWindow(limit, uint64(w.Duration/time.Second), minimum), nil
}

// Gateway builds the engine config. Ledger amounts are given in whole
// tokens.
func (c *Config) Gateway() (core.Config, error) {
	first, err := Units(c.FirstDepositAmount, model.LedgerDecimals)
	if err != nil {
		return core.Config{}, err
	}
	var supplyCap *big.Int
	if c.TotalSupplyCap != "" {
		if supplyCap, err = Units(c.TotalSupplyCap, model.LedgerDecimals); err != nil {
			return core.Config{}, err
		}
	}
	mint, err := c.Mint.limiter()
	if err != nil {
		return core.Config{}, fmt.Errorf("mint window: %w", err)
	}
	redeem, err := c.Redeem.limiter()
	if err != nil {
		return core.Config{}, fmt.Errorf("redeem window: %w", err)
	}

	return core.Config{
		Treasury:           Address(c.Treasury),
		FeeTo:              Address(c.FeeTo),
		Custody:            Address(c.Custody),
		Settlement:         Address(c.Settlement),
		Reserve:            Address(c.Reserve),
		Admin:              Address(c.Admin),
		MintFeeBps:         c.MintFeeBps,
		RedeemFeeBps:       c.RedeemFeeBps,
		APYBps:             c.APYBps,
		TimeBuffer:         uint64(c.TimeBuffer / time.Second),
		MaxStalePeriod:     uint64(c.MaxStalePeriod / time.Second),
		FirstDepositAmount: first,
		TotalSupplyCap:     supplyCap,
		Mint:               mint,
		Redeem:             redeem,
	}, nil
}
