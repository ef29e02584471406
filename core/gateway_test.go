package core

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"usdo-ledger/core/limiter"
	"usdo-ledger/core/model"
	"usdo-ledger/core/rebase"
	"usdo-ledger/core/transport"
	"usdo-ledger/core/txn"
	"usdo-ledger/core/venue"
)

const day = 86_400

var (
	admin     = common.HexToAddress("0xad")
	treasury  = common.HexToAddress("0x7e")
	feeTo     = common.HexToAddress("0xfe")
	custody   = common.HexToAddress("0xc0")
	teller    = common.HexToAddress("0x7f")
	usdc      = common.HexToAddress("0x05dc")
	tbill     = common.HexToAddress("0x0b11")
	alice     = common.HexToAddress("0xa1")
	bob       = common.HexToAddress("0xb1")
	carol     = common.HexToAddress("0xca")
	increment = rebase.DailyIncrement(500)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), model.Base)
}

func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

type manualClock struct{ t uint64 }

func (c *manualClock) now() uint64 { return c.t }

type fixture struct {
	g     *Gateway
	mem   *transport.Memory
	venue *venue.Teller
	clock *manualClock
	sink  *MemorySink
}

func (f *fixture) balance(asset, account common.Address) *big.Int {
	v, err := f.mem.BalanceOf(context.Background(), asset, account)
	if err != nil {
		panic(err)
	}
	return v
}

func newFixture(t *testing.T, opts ...func(*venue.TellerConfig, *Deps)) *fixture {
	t.Helper()
	ctx := context.Background()

	j := txn.New()
	mem := transport.NewMemory(j)
	mem.Register(usdc, 6)
	mem.Register(tbill, 6)
	require.NoError(t, mem.Fund(usdc, alice, usd(10_000)))
	require.NoError(t, mem.Fund(usdc, teller, usd(10_000)))

	tc := venue.TellerConfig{
		Account:       teller,
		Owner:         treasury,
		Reserve:       tbill,
		Settlement:    usdc,
		Price:         big.NewInt(100_000_000),
		PriceDecimals: 8,
	}
	clock := &manualClock{t: 1_700_000_000}
	sink := NewMemorySink(0)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	deps := Deps{
		Assets:  mem,
		Journal: j,
		Clock:   clock.now,
		Sink:    sink,
		Logger:  logrus.NewEntry(log),
	}
	for _, opt := range opts {
		opt(&tc, &deps)
	}
	tl := venue.NewTeller(tc, mem)
	deps.Venue = tl

	g, err := New(Config{
		Treasury:           treasury,
		FeeTo:              feeTo,
		Custody:            custody,
		Settlement:         usdc,
		Reserve:            tbill,
		Admin:              admin,
		APYBps:             500,
		TimeBuffer:         day,
		MaxStalePeriod:     day,
		FirstDepositAmount: ether(100),
		Mint:               limiter.NewWindow(ether(1_000_000), day, ether(1)),
		Redeem:             limiter.NewWindow(ether(1_000_000), day, ether(1)),
	}, deps)
	require.NoError(t, err)

	for _, r := range []model.Role{model.RoleOperator, model.RoleMaintainer, model.RolePauser} {
		require.NoError(t, g.GrantRole(admin, r, admin))
	}
	require.NoError(t, g.SetAssetConfig(ctx, admin, model.AssetConfig{Asset: usdc, IsSupported: true}, nil))
	require.NoError(t, g.SetAssetConfig(ctx, admin, model.AssetConfig{Asset: tbill, IsSupported: true}, nil))
	require.NoError(t, g.GrantKycInBulk(admin, []common.Address{alice, bob}))

	return &fixture{g: g, mem: mem, venue: tl, clock: clock, sink: sink}
}

func TestInstantMintAntiDilution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	curr, next := f.g.GetBonusMultiplier()
	require.Equal(t, model.Base, curr)
	require.Equal(t, new(big.Int).Add(model.Base, increment), next)

	quote, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(1000))
	require.NoError(t, err)
	require.Equal(t, ether(1000), quote.LedgerValue)
	require.Equal(t, model.MulDiv(ether(1000), curr, next), quote.Issued)
	require.Equal(t, quote.Issued, f.g.BalanceOf(alice))
	require.Equal(t, usd(1000), f.balance(usdc, treasury))
	require.Equal(t, usd(9000), f.balance(usdc, alice))

	_, err = f.g.AdvanceMultiplier(admin)
	require.NoError(t, err)

	after := f.g.BalanceOf(alice)
	require.True(t, after.Cmp(ether(1000)) <= 0, "balance %s inflated by the advance", after)
	diff := new(big.Int).Sub(ether(1000), after)
	require.True(t, diff.CmpAbs(big.NewInt(2)) <= 0, "balance %s", after)
}

func TestInstantMintFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.g.UpdateMintFee(admin, 10))

	quote, err := f.g.InstantMint(ctx, alice, usdc, bob, usd(1000))
	require.NoError(t, err)
	require.Equal(t, usd(1), quote.Fee)
	require.Equal(t, usd(999), quote.NetAmount)
	require.Equal(t, ether(999), quote.LedgerValue)
	require.Equal(t, usd(1), f.balance(usdc, feeTo))
	require.Equal(t, usd(999), f.balance(usdc, treasury))
	require.Equal(t, quote.Issued, f.g.BalanceOf(bob))
	require.True(t, f.g.Account(alice).FirstDepositDone)
	require.False(t, f.g.Account(bob).FirstDepositDone)

	require.ErrorIs(t, f.g.UpdateMintFee(admin, 10_001), model.ErrInvalidInput)
}

func TestInstantMintGates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.g.InstantMint(ctx, carol, usdc, alice, usd(100))
	require.ErrorIs(t, err, model.ErrNotInAllowList)
	_, err = f.g.InstantMint(ctx, alice, usdc, carol, usd(100))
	require.ErrorIs(t, err, model.ErrNotInAllowList)

	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(50))
	require.ErrorIs(t, err, model.ErrFirstDepositLessThanRequired)
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(100))
	require.NoError(t, err)
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, big.NewInt(500_000))
	require.ErrorIs(t, err, model.ErrMintLessThanMinimum)
	_, err = f.g.InstantMint(ctx, alice, common.HexToAddress("0xdead"), alice, usd(100))
	require.ErrorIs(t, err, model.ErrAssetNotSupported)

	require.NoError(t, f.g.PauseMint(admin))
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(100))
	require.ErrorIs(t, err, model.ErrPaused)
	require.NoError(t, f.g.UnpauseMint(admin))

	require.NoError(t, f.g.SetTotalSupplyCap(admin, ether(150)))
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(100))
	require.ErrorIs(t, err, model.ErrTotalSupplyCapExceeded)
	require.ErrorIs(t, f.g.SetTotalSupplyCap(admin, big.NewInt(-1)), model.ErrInvalidInput)
	require.NoError(t, f.g.SetTotalSupplyCap(admin, nil))
	require.Nil(t, f.g.Limits().TotalSupplyCap)
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(100))
	require.NoError(t, err)

	require.NoError(t, f.g.RevokeKycInBulk(admin, []common.Address{alice}))
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(10))
	require.ErrorIs(t, err, model.ErrNotInAllowList)
}

func TestMintWindowResets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.g.SetMintLimit(admin, ether(150)))

	_, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(100))
	require.NoError(t, err)
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(100))
	require.ErrorIs(t, err, model.ErrMintLimitExceeded)

	f.clock.t += day - 1
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(100))
	require.ErrorIs(t, err, model.ErrMintLimitExceeded)

	f.clock.t++
	quote, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(100))
	require.NoError(t, err)
	require.Equal(t, quote.Issued, f.g.Limits().Mint.Used)
}

func TestFailedMintLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	before := len(f.sink.Events())

	// bob passes every check but holds no USDC, so the transfer fails last
	_, err := f.g.InstantMint(ctx, bob, usdc, bob, usd(200))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	require.Equal(t, 0, f.g.Limits().Mint.Used.Sign())
	require.False(t, f.g.Account(bob).FirstDepositDone)
	require.Equal(t, 0, f.g.TotalSupply().Sign())
	require.Equal(t, 0, f.balance(usdc, treasury).Sign())
	require.Len(t, f.sink.Events(), before)
}

func TestRoleChecks(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.g.UpdateAPY(alice, 100), model.ErrUnauthorized)
	_, err := f.g.AdvanceMultiplier(alice)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = f.g.ProcessRedemptionQueue(context.Background(), alice, 0)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	require.NoError(t, f.g.GrantRole(admin, model.RolePauser, bob))
	require.True(t, f.g.HasRole(model.RolePauser, bob))
	require.NoError(t, f.g.PauseRedeem(bob))
	require.ErrorIs(t, f.g.UpdateMintFee(bob, 1), model.ErrUnauthorized)
	require.NoError(t, f.g.RevokeRole(admin, model.RolePauser, bob))
	require.ErrorIs(t, f.g.UnpauseRedeem(bob), model.ErrUnauthorized)

	require.ErrorIs(t, f.g.RevokeRole(admin, model.RoleAdmin, admin), model.ErrInvalidInput)
	require.ErrorIs(t, f.g.GrantRole(admin, model.Role("root"), bob), model.ErrInvalidInput)
}

func TestAdvanceMultiplier(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.g.AdvanceDue())

	m, err := f.g.AdvanceMultiplier(admin)
	require.NoError(t, err)
	require.Equal(t, "1000136986301369863", m.String())
	require.False(t, f.g.AdvanceDue())

	_, err = f.g.AdvanceMultiplier(admin)
	require.ErrorIs(t, err, model.ErrTooEarly)
	f.clock.t += day - 1
	_, err = f.g.AdvanceMultiplier(admin)
	require.ErrorIs(t, err, model.ErrTooEarly)
	f.clock.t++
	m, err = f.g.AdvanceMultiplier(admin)
	require.NoError(t, err)
	require.Equal(t, "1000273972602739726", m.String())

	require.ErrorIs(t, f.g.UpdateMultiplier(admin, big.NewInt(0)), model.ErrInvalidInput)
	require.NoError(t, f.g.UpdateMultiplier(admin, model.Base))
	curr, _ := f.g.GetBonusMultiplier()
	require.Equal(t, model.Base, curr)
}

func TestInstantRedeemFromTreasury(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.g.UpdateRedeemFee(admin, 10))
	minted, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(1000))
	require.NoError(t, err)

	quote, err := f.g.InstantRedeemSelf(ctx, alice, ether(500))
	require.NoError(t, err)
	require.Equal(t, usd(500), quote.Underlying)
	require.Equal(t, big.NewInt(500_000), quote.Fee)
	require.Equal(t, big.NewInt(499_500_000), quote.NetAmount)

	require.Equal(t, big.NewInt(9_499_500_000), f.balance(usdc, alice))
	require.Equal(t, big.NewInt(500_000), f.balance(usdc, feeTo))
	require.Equal(t, usd(500), f.balance(usdc, treasury))
	require.Equal(t, new(big.Int).Sub(minted.Issued, ether(500)), f.g.BalanceOf(alice))

	_, err = f.g.InstantRedeemSelf(ctx, alice, big.NewInt(1))
	require.ErrorIs(t, err, model.ErrRedeemLessThanMinimum)
}

func TestInstantRedeemCoversShortfallAtVenue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mem.Fund(tbill, alice, usd(1000)))
	_, err := f.g.InstantMint(ctx, alice, tbill, alice, usd(1000))
	require.NoError(t, err)
	require.Equal(t, 0, f.balance(usdc, treasury).Sign())

	quote, err := f.g.InstantRedeemSelf(ctx, alice, ether(500))
	require.NoError(t, err)
	require.Equal(t, usd(500), quote.NetAmount)
	require.Equal(t, usd(10_500), f.balance(usdc, alice))
	require.Equal(t, usd(500), f.balance(tbill, treasury))
	require.Equal(t, usd(500), f.balance(tbill, teller))
	require.Equal(t, 0, f.balance(usdc, treasury).Sign())

	var kinds []model.EventKind
	for _, e := range f.sink.Events() {
		kinds = append(kinds, e.Kind)
	}
	require.Equal(t, []model.EventKind{model.EventVenueRedeem, model.EventInstantRedeem}, kinds[len(kinds)-2:])
}

func TestInstantRedeemVenueFailuresRollBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mem.Fund(tbill, alice, usd(1000)))
	_, err := f.g.InstantMint(ctx, alice, tbill, alice, usd(1000))
	require.NoError(t, err)
	balance := f.g.BalanceOf(alice)

	// venue cannot pay the shortfall
	require.NoError(t, f.mem.Transfer(ctx, usdc, teller, carol, usd(9_800)))
	_, err = f.g.InstantRedeemSelf(ctx, alice, ether(500))
	require.ErrorIs(t, err, model.ErrInsufficientLiquidity)
	require.NoError(t, f.mem.Transfer(ctx, usdc, carol, teller, usd(9_800)))

	// treasury holds too little reserve for the venue price
	f.venue.SetPrice(big.NewInt(40_000_000))
	_, err = f.g.InstantRedeemSelf(ctx, alice, ether(500))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	f.venue.SetPrice(big.NewInt(100_000_000))
	f.venue.SetPaused(true)
	_, err = f.g.InstantRedeemSelf(ctx, alice, ether(500))
	require.ErrorIs(t, err, model.ErrInsufficientLiquidity)

	require.Equal(t, balance, f.g.BalanceOf(alice))
	require.Equal(t, usd(1000), f.balance(tbill, treasury))
	require.Equal(t, usd(10_000), f.balance(usdc, teller))
	require.Equal(t, 0, f.g.Limits().Redeem.Used.Sign())
}

func TestManualRedeemUsesTreasuryOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mem.Fund(tbill, alice, usd(1000)))
	_, err := f.g.InstantMint(ctx, alice, tbill, alice, usd(1000))
	require.NoError(t, err)

	_, err = f.g.Redeem(ctx, alice, alice, ether(100))
	require.ErrorIs(t, err, model.ErrInsufficientLiquidity)
	require.Equal(t, usd(10_000), f.balance(usdc, teller))

	require.NoError(t, f.g.Fund(admin, usdc, treasury, usd(100)))
	_, err = f.g.Redeem(ctx, alice, bob, ether(100))
	require.NoError(t, err)
	require.Equal(t, usd(100), f.balance(usdc, bob))

	events := f.sink.Events()
	require.Equal(t, model.EventManualRedeem, events[len(events)-1].Kind)
}

func TestRedemptionQueueFIFO(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(1000))
	require.NoError(t, err)

	r1, err := f.g.RedeemRequest(ctx, alice, alice, ether(100))
	require.NoError(t, err)
	r2, err := f.g.RedeemRequest(ctx, alice, bob, ether(100))
	require.NoError(t, err)
	r3, err := f.g.RedeemRequest(ctx, alice, bob, ether(50))
	require.NoError(t, err)
	require.NotEqual(t, r1.ID, r2.ID)
	require.Equal(t, 3, f.g.GetRedemptionQueueLength())
	require.Equal(t, ether(150), f.g.GetRedemptionUserInfo(bob))

	res, err := f.g.ProcessRedemptionQueue(ctx, admin, 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)
	require.Equal(t, 1, res.Remaining)
	require.Equal(t, ether(200), res.TotalLedger)
	require.Equal(t, usd(200), res.TotalOut)

	head, err := f.g.GetRedemptionQueueInfo(0)
	require.NoError(t, err)
	require.Equal(t, r3.ID, head.ID)
	require.Equal(t, ether(50), f.g.GetRedemptionUserInfo(bob))
	require.Equal(t, usd(100), f.balance(usdc, bob))

	_, err = f.g.GetRedemptionQueueInfo(1)
	require.ErrorIs(t, err, model.ErrUnknownRequest)
}

func TestRedemptionQueueStopsOnLiquidity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mem.Fund(tbill, alice, usd(1000)))
	_, err := f.g.InstantMint(ctx, alice, tbill, alice, usd(1000))
	require.NoError(t, err)
	require.NoError(t, f.g.Fund(admin, usdc, treasury, usd(150)))

	for i := 0; i < 2; i++ {
		_, err := f.g.RedeemRequest(ctx, alice, alice, ether(100))
		require.NoError(t, err)
	}

	res, err := f.g.ProcessRedemptionQueue(ctx, admin, 2)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, f.g.GetRedemptionQueueLength())
	require.Equal(t, usd(50), f.balance(usdc, treasury))

	// no liquidity at all is still a successful empty batch
	res, err = f.g.ProcessRedemptionQueue(ctx, admin, 0)
	require.NoError(t, err)
	require.Equal(t, 0, res.Processed)
	require.Equal(t, 1, res.Remaining)
}

func TestCancelRestoresSenders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(1000))
	require.NoError(t, err)
	balance := f.g.BalanceOf(alice)

	_, err = f.g.RedeemRequest(ctx, alice, bob, ether(100))
	require.NoError(t, err)
	_, err = f.g.RedeemRequest(ctx, alice, alice, ether(40))
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Sub(balance, ether(140)), f.g.BalanceOf(alice))

	_, err = f.g.Cancel(alice, 1)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	out, err := f.g.Cancel(admin, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, balance, f.g.BalanceOf(alice))
	require.Equal(t, 0, f.g.GetRedemptionUserInfo(bob).Sign())
	require.Equal(t, 0, f.g.GetRedemptionQueueLength())

	_, err = f.g.Cancel(admin, 1)
	require.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = f.g.Cancel(admin, 0)
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRedeemPauseAndBan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(1000))
	require.NoError(t, err)

	require.NoError(t, f.g.PauseRedeem(admin))
	_, err = f.g.RedeemRequest(ctx, alice, alice, ether(10))
	require.ErrorIs(t, err, model.ErrPaused)
	require.NoError(t, f.g.UnpauseRedeem(admin))

	require.NoError(t, f.g.Ban(admin, alice))
	require.ErrorIs(t, f.g.Transfer(alice, bob, ether(1)), model.ErrBannedAccount)
	_, err = f.g.RedeemRequest(ctx, alice, alice, ether(10))
	require.ErrorIs(t, err, model.ErrBannedAccount)
	require.NoError(t, f.g.Unban(admin, alice))

	require.NoError(t, f.g.PauseLedger(admin))
	require.ErrorIs(t, f.g.Transfer(alice, bob, ether(1)), model.ErrPaused)
	require.NoError(t, f.g.UnpauseLedger(admin))
	require.NoError(t, f.g.Transfer(alice, bob, ether(1)))
	require.Equal(t, ether(1), f.g.BalanceOf(bob))
}

func TestMintAndWrap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	quote, err := f.g.InstantMintAndWrap(ctx, alice, usdc, bob, usd(1000))
	require.NoError(t, err)
	require.Equal(t, quote.Issued, quote.Wrapped)
	require.Equal(t, quote.Wrapped, f.g.WrappedBalanceOf(bob))
	require.Equal(t, quote.Issued, f.g.BalanceOf(custody))
	require.Equal(t, 0, f.g.BalanceOf(bob).Sign())

	_, err = f.g.AdvanceMultiplier(admin)
	require.NoError(t, err)
	require.Equal(t, quote.Wrapped, f.g.WrappedBalanceOf(bob))

	amount, err := f.g.Unwrap(bob, bob, quote.Wrapped)
	require.NoError(t, err)
	diff := new(big.Int).Sub(ether(1000), amount)
	require.True(t, diff.Sign() >= 0 && diff.Cmp(big.NewInt(2)) <= 0, "unwrapped %s", amount)
	require.Equal(t, 0, f.g.TotalWrapped().Sign())

	units, err := f.g.Wrap(bob, alice, ether(10))
	require.NoError(t, err)
	require.Equal(t, units, f.g.WrappedBalanceOf(alice))
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.g.UpdateMintFee(admin, 5))
	_, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(1000))
	require.NoError(t, err)
	_, err = f.g.InstantMintAndWrap(ctx, alice, usdc, bob, usd(10))
	require.NoError(t, err)
	_, err = f.g.AdvanceMultiplier(admin)
	require.NoError(t, err)
	_, err = f.g.RedeemRequest(ctx, alice, bob, ether(20))
	require.NoError(t, err)
	require.NoError(t, f.g.Ban(admin, carol))

	st := f.g.Export()
	want, err := json.Marshal(st)
	require.NoError(t, err)

	restored := newFixture(t)
	require.NoError(t, restored.g.Import(st, nil))
	got, err := json.Marshal(restored.g.Export())
	require.NoError(t, err)
	require.JSONEq(t, string(want), string(got))

	require.Equal(t, f.g.BalanceOf(alice), restored.g.BalanceOf(alice))
	wantBob, err := json.Marshal(f.g.Account(bob))
	require.NoError(t, err)
	gotBob, err := json.Marshal(restored.g.Account(bob))
	require.NoError(t, err)
	require.JSONEq(t, string(wantBob), string(gotBob))
	require.Equal(t, f.balance(usdc, treasury), restored.balance(usdc, treasury))

	bad := f.g.Export()
	bad.Ledger.TotalShares = new(big.Int).Add(bad.Ledger.TotalShares, big.NewInt(1))
	fresh := newFixture(t)
	require.ErrorIs(t, fresh.g.Import(bad, nil), model.ErrInvalidInput)
	require.Equal(t, 0, fresh.g.TotalSupply().Sign())
}

func TestInstantRedeemGrossesUpVenueFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(tc *venue.TellerConfig, _ *Deps) { tc.FeeBps = 10 })
	require.NoError(t, f.mem.Fund(tbill, alice, usd(1000)))
	_, err := f.g.InstantMint(ctx, alice, tbill, alice, usd(1000))
	require.NoError(t, err)

	quote, err := f.g.InstantRedeemSelf(ctx, alice, ether(500))
	require.NoError(t, err)
	require.Equal(t, usd(500), quote.NetAmount)
	require.Equal(t, usd(10_500), f.balance(usdc, alice))
	// 500.500501 reserve pays 500.000001 after the 10 bps venue fee
	require.Equal(t, big.NewInt(500_500_501), f.balance(tbill, teller))
	require.Equal(t, big.NewInt(499_499_499), f.balance(tbill, treasury))
	require.Equal(t, big.NewInt(1), f.balance(usdc, treasury))
}

func TestInstantRedeemFollowsVenuePrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mem.Fund(tbill, alice, usd(1000)))
	_, err := f.g.InstantMint(ctx, alice, tbill, alice, usd(1000))
	require.NoError(t, err)

	f.venue.SetPrice(big.NewInt(99_000_000))
	quote, err := f.g.InstantRedeemSelf(ctx, alice, ether(500))
	require.NoError(t, err)
	require.Equal(t, usd(500), quote.NetAmount)
	require.Equal(t, usd(10_500), f.balance(usdc, alice))
	require.True(t, f.balance(usdc, treasury).Sign() >= 0)
}

type recordingStore struct {
	fail  error
	saves int
	last  State
}

func (s *recordingStore) Save(st State) error {
	if s.fail != nil {
		return s.fail
	}
	s.saves++
	s.last = st
	return nil
}

func withStore(st *recordingStore) func(*venue.TellerConfig, *Deps) {
	return func(_ *venue.TellerConfig, d *Deps) { d.Store = st }
}

func TestFailedSaveRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	f := newFixture(t, withStore(store))
	events := len(f.sink.Events())

	store.fail = errors.New("disk full")
	_, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(1000))
	require.ErrorIs(t, err, store.fail)
	require.Equal(t, 0, f.g.BalanceOf(alice).Sign())
	require.Equal(t, usd(10_000), f.balance(usdc, alice))
	require.Equal(t, 0, f.balance(usdc, treasury).Sign())
	require.Len(t, f.sink.Events(), events)

	store.fail = nil
	_, err = f.g.InstantMint(ctx, alice, usdc, alice, usd(1000))
	require.NoError(t, err)
	require.Equal(t, f.g.BalanceOf(alice), ledgerBalance(store.last, alice))
}

func ledgerBalance(st State, account common.Address) *big.Int {
	shares := model.Copy(st.Ledger.Shares[account])
	return model.MulDiv(shares, st.Ledger.Multiplier, model.Base)
}

func TestSavedStateFollowsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	f := newFixture(t, withStore(store))
	before := store.saves

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.g.InstantMint(ctx, alice, usdc, alice, usd(200))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, before+8, store.saves)
	want, err := json.Marshal(f.g.Export())
	require.NoError(t, err)
	got, err := json.Marshal(store.last)
	require.NoError(t, err)
	require.JSONEq(t, string(want), string(got))
}
