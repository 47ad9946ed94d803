package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/behype/params"
	"github.com/uhyunpark/behype/pkg/crypto"
	"github.com/uhyunpark/behype/pkg/exchange"
	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/order"
	"github.com/uhyunpark/behype/pkg/util"
	"github.com/uhyunpark/behype/pkg/wallet"
)

// sign-order builds a normalized limit order, signs it with the wallet key
// and prints the transaction the gateway expects. Nothing is sent.
func main() {
	var (
		keyFile  = flag.String("key", "", "wallet key file (a fresh key is generated when empty)")
		assetID  = flag.String("asset", "@142", "spot asset id")
		sideStr  = flag.String("side", "buy", "buy or sell")
		quantity = flag.String("qty", "11", "quote amount for buys, base amount for sells")
		price    = flag.String("price", "118225", "limit price")
		tifStr   = flag.String("tif", "gtc", "gtc, ioc or alo")
		balance  = flag.String("balance", "1000000", "available balance used for the local checks")
		assets   = flag.String("assets", "", "optional YAML assets file")
	)
	flag.Parse()

	cfg := params.LoadFromEnv("")

	signer, err := loadOrGenerate(*keyFile)
	if err != nil {
		fail("load key", err)
	}
	fmt.Printf("Address: %s\n\n", signer.AddressHex())

	registry := market.DefaultRegistry()
	if *assets != "" {
		if _, err := registry.LoadFile(*assets); err != nil {
			fail("assets file", err)
		}
	}
	asset, err := registry.Get(*assetID)
	if err != nil {
		fail("asset", err)
	}
	side, err := order.ParseSide(*sideStr)
	if err != nil {
		fail("side", err)
	}
	tif, err := order.ParseTimeInForce(*tifStr)
	if err != nil {
		fail("tif", err)
	}
	avail, err := decimal.NewFromString(*balance)
	if err != nil {
		fail("balance", err)
	}

	req, err := order.Build(side, *quantity, *price, avail, asset, tif)
	if err != nil {
		fail("build order", err)
	}
	fmt.Println("Order:")
	fmt.Printf("  Asset: %s (%s, index %d)\n", asset.ID, asset.Name, asset.Index)
	fmt.Printf("  Side: %s\n", req.Side)
	fmt.Printf("  Price: %s (tick %s)\n", req.PriceString, asset.TickSize)
	fmt.Printf("  Size: %s (lot precision %d)\n", req.SizeString, asset.LotPrecision)
	fmt.Printf("  TIF: %s\n\n", req.TimeInForce)

	trader := exchange.NewSignedTrader(cfg.Gateway, cfg.Info.Timeout, signer, util.RealClock{}, nil)
	tx, err := trader.SignOrder(req)
	if err != nil {
		fail("sign", err)
	}
	txJSON, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		fail("marshal", err)
	}
	fmt.Println("Signed Transaction (JSON):")
	fmt.Println(string(txJSON))
	fmt.Println()

	owner, err := tx.Verify(crypto.NewTypedSigner(crypto.DefaultDomain(cfg.Gateway.ChainID)))
	if err != nil {
		fail("verify", err)
	}
	fmt.Printf("Signature valid, signer %s (matches: %v)\n\n", owner.Hex(), owner == signer.Address())

	fmt.Println("Submit with:")
	fmt.Printf("  POST %s/api/v1/orders\n", cfg.Gateway.URL)
	fmt.Println("  Content-Type: application/json")
}

func loadOrGenerate(path string) (*crypto.Signer, error) {
	if path != "" {
		return wallet.LoadKeyFile(path)
	}
	fmt.Println("No key file given, generating a throwaway key")
	return crypto.GenerateKey()
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "Error (%s): %v\n", step, err)
	os.Exit(1)
}
