package client

import (
	"context"
	"errors"
	"strings"

	"github.com/adshao/go-binance/v2/common"

	"short_bot/models"
)

// Binance futures error codes the engine branches on.
const (
	codeWouldTrigger       int64 = -2021
	codeNoNeedMarginType   int64 = -4046
	codeNoNeedPositionSide int64 = -4059
)

const (
	msgWouldTrigger   = "would immediately trigger"
	msgNoNeedToChange = "no need to change"
)

// translateError maps a go-binance failure onto the error taxonomy. Codes
// take precedence; message text is only consulted when no API code came back.
func translateError(op, symbol string, err error) error {
	if err == nil {
		return nil
	}
	var gwErr *models.GatewayError
	if errors.As(err, &gwErr) {
		return err
	}

	out := &models.GatewayError{Op: op, Symbol: symbol, Kind: models.KindTransientGateway, Err: err}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.Code
		out.Kind = kindForCode(apiErr.Code, apiErr.Message)
		return out
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return out
	}
	out.Kind = kindForCode(0, err.Error())
	return out
}

func kindForCode(code int64, msg string) models.ErrorKind {
	switch code {
	case codeWouldTrigger:
		return models.KindTriggerConflict
	case codeNoNeedMarginType, codeNoNeedPositionSide:
		return models.KindConfigurationRejected
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, msgWouldTrigger):
		return models.KindTriggerConflict
	case strings.Contains(lower, msgNoNeedToChange):
		return models.KindConfigurationRejected
	}
	return models.KindTransientGateway
}
