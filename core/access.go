package core

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"usdo-ledger/core/model"
)

type Op string

const (
	OpInstantMint        Op = "instant_mint"
	OpInstantMintAndWrap Op = "instant_mint_and_wrap"
	OpInstantRedeem      Op = "instant_redeem"
	OpRedeem             Op = "redeem"
	OpRedeemRequest      Op = "redeem_request"
	OpTransfer           Op = "transfer"
	OpWrap               Op = "wrap"
	OpUnwrap             Op = "unwrap"

	OpProcessQueue Op = "process_redemption_queue"
	OpCancel       Op = "cancel"

	OpAdvanceMultiplier Op = "advance_multiplier"
	OpUpdateMultiplier  Op = "update_multiplier"
	OpUpdateAPY         Op = "update_apy"
	OpSetTimeBuffer     Op = "set_time_buffer"

	OpUpdateMintFee         Op = "update_mint_fee"
	OpUpdateRedeemFee       Op = "update_redeem_fee"
	OpSetTotalSupplyCap     Op = "set_total_supply_cap"
	OpSetLimiter            Op = "set_limiter"
	OpSetFirstDepositAmount Op = "set_first_deposit_amount"
	OpGrantKyc              Op = "grant_kyc"
	OpRevokeKyc             Op = "revoke_kyc"

	OpSetAssetConfig    Op = "set_asset_config"
	OpRemoveAsset       Op = "remove_asset"
	OpSetMaxStalePeriod Op = "set_max_stale_period"

	OpPauseMint     Op = "pause_mint"
	OpUnpauseMint   Op = "unpause_mint"
	OpPauseRedeem   Op = "pause_redeem"
	OpUnpauseRedeem Op = "unpause_redeem"
	OpPauseLedger   Op = "pause_ledger"
	OpUnpauseLedger Op = "unpause_ledger"
	OpBan           Op = "ban"
	OpUnban         Op = "unban"

	OpGrantRole  Op = "grant_role"
	OpRevokeRole Op = "revoke_role"
	OpFund       Op = "fund"
)

var (
	adminOnly  = []model.Role{model.RoleAdmin}
	pauseRoles = []model.Role{model.RolePauser, model.RoleAdmin}
)

// permissions maps each gated operation to the roles allowed to run it.
// Operations missing here are open to any caller; their allow-list checks
// happen inside the operation.
var permissions = map[Op][]model.Role{
	OpProcessQueue: {model.RoleMaintainer},
	OpCancel:       {model.RoleMaintainer},

	OpAdvanceMultiplier: {model.RoleOperator},
	OpUpdateMultiplier:  adminOnly,
	OpUpdateAPY:         adminOnly,
	OpSetTimeBuffer:     adminOnly,

	OpUpdateMintFee:         adminOnly,
	OpUpdateRedeemFee:       adminOnly,
	OpSetTotalSupplyCap:     adminOnly,
	OpSetLimiter:            adminOnly,
	OpSetFirstDepositAmount: adminOnly,
	OpGrantKyc:              adminOnly,
	OpRevokeKyc:             adminOnly,

	OpSetAssetConfig:    adminOnly,
	OpRemoveAsset:       adminOnly,
	OpSetMaxStalePeriod: adminOnly,

	OpPauseMint:     pauseRoles,
	OpUnpauseMint:   pauseRoles,
	OpPauseRedeem:   pauseRoles,
	OpUnpauseRedeem: pauseRoles,
	OpPauseLedger:   pauseRoles,
	OpUnpauseLedger: pauseRoles,
	OpBan:           adminOnly,
	OpUnban:         adminOnly,

	OpGrantRole:  adminOnly,
	OpRevokeRole: adminOnly,
	OpFund:       adminOnly,
}

func (g *Gateway) authorize(op Op, caller common.Address) error {
	roles, gated := permissions[op]
	if !gated {
		return nil
	}
	for _, r := range roles {
		if g.roles[r].Has(caller) {
			return nil
		}
	}
	return model.NewError(model.CodeUnauthorized, "%s may not %s", caller.Hex(), op)
}

// HasRole reports whether account holds role.
func (g *Gateway) HasRole(role model.Role, account common.Address) bool {
	var ok bool
	g.view(func() {
		set, found := g.roles[role]
		ok = found && set.Has(account)
	})
	return ok
}

func (g *Gateway) GrantRole(caller common.Address, role model.Role, account common.Address) error {
	return g.exec(OpGrantRole, caller, func() error {
		if !role.Valid() {
			return model.NewError(model.CodeInvalidInput, "unknown role %q", role)
		}
		if putMember(g.journal, g.roles[role], account) {
			g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpGrantRole) + ":" + string(role), Caller: caller, To: account})
		}
		return nil
	}, logrus.Fields{"role": role, "account": account.Hex()})
}

// RevokeRole removes account from role. The last admin cannot be removed.
func (g *Gateway) RevokeRole(caller common.Address, role model.Role, account common.Address) error {
	return g.exec(OpRevokeRole, caller, func() error {
		if !role.Valid() {
			return model.NewError(model.CodeInvalidInput, "unknown role %q", role)
		}
		set := g.roles[role]
		if role == model.RoleAdmin && set.Has(account) && set.Size() == 1 {
			return model.NewError(model.CodeInvalidInput, "cannot revoke the last admin")
		}
		if removeMember(g.journal, set, account) {
			g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpRevokeRole) + ":" + string(role), Caller: caller, From: account})
		}
		return nil
	}, logrus.Fields{"role": role, "account": account.Hex()})
}

func members(set mapset.Set[common.Address]) []common.Address {
	out := make([]common.Address, 0, set.Size())
	set.Each(func(a common.Address) {
		out = append(out, a)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
