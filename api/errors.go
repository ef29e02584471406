package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/twitchtv/twirp"

	"usdo-ledger/core/model"
)

var twirpCodes = map[model.ErrorCode]twirp.ErrorCode{
	model.CodeUnauthorized:                 twirp.PermissionDenied,
	model.CodeNotInAllowList:               twirp.PermissionDenied,
	model.CodeBannedAccount:                twirp.PermissionDenied,
	model.CodeInvalidInput:                 twirp.InvalidArgument,
	model.CodeAssetNotSupported:            twirp.InvalidArgument,
	model.CodeMintLessThanMinimum:          twirp.InvalidArgument,
	model.CodeFirstDepositLessThanRequired: twirp.InvalidArgument,
	model.CodeRedeemLessThanMinimum:        twirp.InvalidArgument,
	model.CodePaused:                       twirp.FailedPrecondition,
	model.CodeTooEarly:                     twirp.FailedPrecondition,
	model.CodeStalePrice:                   twirp.FailedPrecondition,
	model.CodeInvalidPrice:                 twirp.FailedPrecondition,
	model.CodeInsufficientBalance:          twirp.FailedPrecondition,
	model.CodeInsufficientLiquidity:        twirp.FailedPrecondition,
	model.CodeMintLimitExceeded:            twirp.ResourceExhausted,
	model.CodeRedeemLimitExceeded:          twirp.ResourceExhausted,
	model.CodeTotalSupplyCapExceeded:       twirp.ResourceExhausted,
	model.CodeUnknownRequest:               twirp.NotFound,
}

// toTwirp keeps the engine code and reason as error metadata.
func toTwirp(err error) twirp.Error {
	var terr twirp.Error
	if errors.As(err, &terr) {
		return terr
	}
	var merr *model.Error
	if !errors.As(err, &merr) {
		return twirp.InternalErrorWith(err)
	}
	code, ok := twirpCodes[merr.Code]
	if !ok {
		code = twirp.Internal
	}
	return twirp.NewError(code, merr.Error()).
		WithMeta("code", cast.ToString(int(merr.Code))).
		WithMeta("reason", merr.Code.String())
}

func renderErr(w http.ResponseWriter, err error) {
	terr := toTwirp(err)
	if terr.Code() == twirp.Internal {
		logrus.Errorf("api: %v", err)
	}
	_ = twirp.WriteError(w, terr)
}
