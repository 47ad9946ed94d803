// Package exchange is the boundary to the external exchange: the public info
// endpoint, the signed order gateway, and canned stand-ins for test mode.
package exchange

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/uhyunpark/behype/params"
	"github.com/uhyunpark/behype/pkg/crypto"
	"github.com/uhyunpark/behype/pkg/util"
)

// New picks the collaborators for cfg. Test mode never touches the network
// and needs no signer.
func New(cfg params.Config, signer *crypto.Signer, clock util.Clock, log *zap.Logger) (Info, Trader, error) {
	if cfg.Node.TestMode {
		log.Info("exchange_mode", zap.String("mode", "test"))
		return NewMockInfo(clock), MockTrader{}, nil
	}
	if signer == nil {
		return nil, nil, fmt.Errorf("live mode requires a wallet key (KEY_FILE=%q)", cfg.Node.KeyFile)
	}
	log.Info("exchange_mode",
		zap.String("mode", "live"),
		zap.String("info", cfg.Info.URL),
		zap.String("gateway", cfg.Gateway.URL),
		zap.Int64("chain_id", cfg.Gateway.ChainID))
	info := NewHTTPInfo(cfg.Info, log.Named("info"))
	trader := NewSignedTrader(cfg.Gateway, cfg.Info.Timeout, signer, clock, log.Named("trader"))
	return info, trader, nil
}
