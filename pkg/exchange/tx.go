package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/uhyunpark/behype/pkg/crypto"
)

type TxType string

const (
	TxTypeOrder  TxType = "order"
	TxTypeCancel TxType = "cancel"
)

// SignedTransaction is the JSON body the gateway accepts.
//
//	{
//	  "type": "order",
//	  "order": {"asset": 142, "isBuy": true, "price": "118225", "size": "0.00009",
//	            "reduceOnly": false, "tif": "Gtc", "nonce": "1752000000000",
//	            "owner": "0x742d..."},
//	  "signature": "0x..."
//	}
type SignedTransaction struct {
	Type      TxType         `json:"type"`
	Order     *OrderPayload  `json:"order,omitempty"`
	Cancel    *CancelPayload `json:"cancel,omitempty"`
	Signature string         `json:"signature"`
}

type OrderPayload struct {
	Asset      uint32 `json:"asset"`
	IsBuy      bool   `json:"isBuy"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	ReduceOnly bool   `json:"reduceOnly"`
	Tif        string `json:"tif"`
	Nonce      string `json:"nonce"`
	Owner      string `json:"owner"`
}

type CancelPayload struct {
	Asset   uint32 `json:"asset"`
	OrderID uint64 `json:"oid"`
	Nonce   string `json:"nonce"`
	Owner   string `json:"owner"`
}

func FromOrderAction(a *crypto.OrderAction) *OrderPayload {
	return &OrderPayload{
		Asset:      a.Asset,
		IsBuy:      a.IsBuy,
		Price:      a.Price,
		Size:       a.Size,
		ReduceOnly: a.ReduceOnly,
		Tif:        a.TimeInForce,
		Nonce:      strconv.FormatUint(a.Nonce, 10),
		Owner:      a.Owner.Hex(),
	}
}

func (o *OrderPayload) ToOrderAction() (*crypto.OrderAction, error) {
	nonce, err := strconv.ParseUint(o.Nonce, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %s", o.Nonce)
	}
	if !common.IsHexAddress(o.Owner) {
		return nil, fmt.Errorf("invalid owner: %s", o.Owner)
	}
	return &crypto.OrderAction{
		Asset:       o.Asset,
		IsBuy:       o.IsBuy,
		Price:       o.Price,
		Size:        o.Size,
		ReduceOnly:  o.ReduceOnly,
		TimeInForce: o.Tif,
		Nonce:       nonce,
		Owner:       common.HexToAddress(o.Owner),
	}, nil
}

func FromCancelAction(c *crypto.CancelAction) *CancelPayload {
	return &CancelPayload{
		Asset:   c.Asset,
		OrderID: c.OrderID,
		Nonce:   strconv.FormatUint(c.Nonce, 10),
		Owner:   c.Owner.Hex(),
	}
}

func (c *CancelPayload) ToCancelAction() (*crypto.CancelAction, error) {
	nonce, err := strconv.ParseUint(c.Nonce, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %s", c.Nonce)
	}
	if !common.IsHexAddress(c.Owner) {
		return nil, fmt.Errorf("invalid owner: %s", c.Owner)
	}
	return &crypto.CancelAction{
		Asset:   c.Asset,
		OrderID: c.OrderID,
		Nonce:   nonce,
		Owner:   common.HexToAddress(c.Owner),
	}, nil
}

func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return &tx, nil
}

// Validate checks structure only; Verify checks the signature.
func (tx *SignedTransaction) Validate() error {
	if !strings.HasPrefix(tx.Signature, "0x") {
		return fmt.Errorf("missing signature")
	}
	switch tx.Type {
	case TxTypeOrder:
		if tx.Order == nil {
			return fmt.Errorf("order type requires order payload")
		}
		if tx.Order.Price == "" || tx.Order.Size == "" {
			return fmt.Errorf("order price and size are required")
		}
		if tx.Order.Owner == "" {
			return fmt.Errorf("missing order owner")
		}
	case TxTypeCancel:
		if tx.Cancel == nil {
			return fmt.Errorf("cancel type requires cancel payload")
		}
		if tx.Cancel.Owner == "" {
			return fmt.Errorf("missing cancel owner")
		}
	default:
		return fmt.Errorf("unknown transaction type: %q", tx.Type)
	}
	return nil
}

// Verify recovers the signer and checks it against the payload owner.
func (tx *SignedTransaction) Verify(ts *crypto.TypedSigner) (common.Address, error) {
	sig, err := hexutil.Decode(tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}

	var (
		ok    bool
		owner common.Address
	)
	switch tx.Type {
	case TxTypeOrder:
		a, err := tx.Order.ToOrderAction()
		if err != nil {
			return common.Address{}, err
		}
		owner = a.Owner
		ok, err = ts.VerifyOrder(a, sig)
		if err != nil {
			return common.Address{}, err
		}
	case TxTypeCancel:
		c, err := tx.Cancel.ToCancelAction()
		if err != nil {
			return common.Address{}, err
		}
		owner = c.Owner
		ok, err = ts.VerifyCancel(c, sig)
		if err != nil {
			return common.Address{}, err
		}
	default:
		return common.Address{}, fmt.Errorf("unknown transaction type: %q", tx.Type)
	}
	if !ok {
		return common.Address{}, fmt.Errorf("signature does not match owner %s", owner.Hex())
	}
	return owner, nil
}
