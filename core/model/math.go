package model

import "math/big"

// Base is the fixed-point scale of the bonus multiplier and of ledger units.
var Base = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

const (
	LedgerDecimals = 18
	BpsDenominator = 10_000
)

var pow10 [LedgerDecimals + 1]*big.Int

func init() {
	for i := range pow10 {
		pow10[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(i)), nil)
	}
}

// Pow10 returns 10^n. The result must not be modified.
func Pow10(n uint8) *big.Int {
	if int(n) < len(pow10) {
		return pow10[n]
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// MulDiv returns floor(x*y/d).
func MulDiv(x, y, d *big.Int) *big.Int {
	p := new(big.Int).Mul(x, y)
	return p.Quo(p, d)
}

// MulDivUp returns ceil(x*y/d) for non-negative operands.
func MulDivUp(x, y, d *big.Int) *big.Int {
	p := new(big.Int).Mul(x, y)
	q, r := new(big.Int).QuoRem(p, d, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// BpsOf returns floor(amount*bps/10^4).
func BpsOf(amount *big.Int, bps uint64) *big.Int {
	return MulDiv(amount, new(big.Int).SetUint64(bps), big.NewInt(BpsDenominator))
}

func Copy(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

func IsPositive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}
