package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/uhyunpark/behype/pkg/order"
)

// Domain is the EIP-712 domain separator input.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address // zero for off-chain signing
}

// DefaultDomain returns the BeHype gateway domain on the given chain.
func DefaultDomain(chainID int64) Domain {
	return Domain{
		Name:    "BeHype",
		Version: "1",
		ChainID: big.NewInt(chainID),
	}
}

// OrderAction is the signed form of a limit order. Price and size travel as
// the exchange's decimal strings, already at tick and lot precision.
type OrderAction struct {
	Asset       uint32
	IsBuy       bool
	Price       string
	Size        string
	ReduceOnly  bool
	TimeInForce string
	Nonce       uint64
	Owner       common.Address
}

// CancelAction is the signed form of a cancel.
type CancelAction struct {
	Asset   uint32
	OrderID uint64
	Nonce   uint64
	Owner   common.Address
}

// NewOrderAction converts a built request into the typed message.
func NewOrderAction(req *order.Request, nonce uint64, owner common.Address) *OrderAction {
	return &OrderAction{
		Asset:       req.AssetIndex,
		IsBuy:       req.Side.IsBuy(),
		Price:       req.PriceString,
		Size:        req.SizeString,
		ReduceOnly:  req.ReduceOnly,
		TimeInForce: string(req.TimeInForce),
		Nonce:       nonce,
		Owner:       owner,
	}
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var orderType = []apitypes.Type{
	{Name: "asset", Type: "uint32"},
	{Name: "isBuy", Type: "bool"},
	{Name: "price", Type: "string"},
	{Name: "size", Type: "string"},
	{Name: "reduceOnly", Type: "bool"},
	{Name: "tif", Type: "string"},
	{Name: "nonce", Type: "uint64"},
	{Name: "owner", Type: "address"},
}

var cancelType = []apitypes.Type{
	{Name: "asset", Type: "uint32"},
	{Name: "oid", Type: "uint64"},
	{Name: "nonce", Type: "uint64"},
	{Name: "owner", Type: "address"},
}

// TypedSigner hashes and signs order and cancel actions for one domain.
type TypedSigner struct {
	domain Domain
}

func NewTypedSigner(domain Domain) *TypedSigner {
	return &TypedSigner{domain: domain}
}

func (e *TypedSigner) Domain() Domain { return e.domain }

func (e *TypedSigner) typedData(primary string, fields []apitypes.Type, msg apitypes.TypedDataMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			primary:        fields,
		},
		PrimaryType: primary,
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: msg,
	}
}

// OrderTypedData returns the full typed data, as wallets expect it for
// eth_signTypedData_v4.
func (e *TypedSigner) OrderTypedData(a *OrderAction) apitypes.TypedData {
	return e.typedData("Order", orderType, apitypes.TypedDataMessage{
		"asset":      strconv.FormatUint(uint64(a.Asset), 10),
		"isBuy":      a.IsBuy,
		"price":      a.Price,
		"size":       a.Size,
		"reduceOnly": a.ReduceOnly,
		"tif":        a.TimeInForce,
		"nonce":      strconv.FormatUint(a.Nonce, 10),
		"owner":      a.Owner.Hex(),
	})
}

func (e *TypedSigner) CancelTypedData(c *CancelAction) apitypes.TypedData {
	return e.typedData("Cancel", cancelType, apitypes.TypedDataMessage{
		"asset": strconv.FormatUint(uint64(c.Asset), 10),
		"oid":   strconv.FormatUint(c.OrderID, 10),
		"nonce": strconv.FormatUint(c.Nonce, 10),
		"owner": c.Owner.Hex(),
	})
}

// digest computes keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
func digest(td apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	messageHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

func (e *TypedSigner) HashOrder(a *OrderAction) ([]byte, error) {
	return digest(e.OrderTypedData(a))
}

func (e *TypedSigner) HashCancel(c *CancelAction) ([]byte, error) {
	return digest(e.CancelTypedData(c))
}

func (e *TypedSigner) SignOrder(signer *Signer, a *OrderAction) ([]byte, error) {
	hash, err := e.HashOrder(a)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}
	return sig, nil
}

func (e *TypedSigner) SignCancel(signer *Signer, c *CancelAction) ([]byte, error) {
	hash, err := e.HashCancel(c)
	if err != nil {
		return nil, fmt.Errorf("failed to hash cancel: %w", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign cancel: %w", err)
	}
	return sig, nil
}

// VerifyOrder reports whether sig over a was produced by a.Owner.
func (e *TypedSigner) VerifyOrder(a *OrderAction, sig []byte) (bool, error) {
	hash, err := e.HashOrder(a)
	if err != nil {
		return false, fmt.Errorf("failed to hash order: %w", err)
	}
	recovered, err := RecoverAddress(hash, sig)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}
	return recovered == a.Owner, nil
}

func (e *TypedSigner) VerifyCancel(c *CancelAction, sig []byte) (bool, error) {
	hash, err := e.HashCancel(c)
	if err != nil {
		return false, fmt.Errorf("failed to hash cancel: %w", err)
	}
	recovered, err := RecoverAddress(hash, sig)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}
	return recovered == c.Owner, nil
}

// OrderJSON renders the typed data for wallet signing.
func (e *TypedSigner) OrderJSON(a *OrderAction) (string, error) {
	b, err := json.MarshalIndent(e.OrderTypedData(a), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal typed data: %w", err)
	}
	return string(b), nil
}
