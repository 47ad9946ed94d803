package market

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry manages per-asset configuration in a thread-safe manner.
// It is the single source of display names: an asset that is not registered
// has no name and is never shown.
type Registry struct {
	mu     sync.RWMutex
	assets map[string]AssetConfig // id -> config
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		assets: make(map[string]AssetConfig),
	}
}

// Register adds a new asset. Returns error if the id is already registered.
func (r *Registry) Register(a AssetConfig) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[a.ID]; exists {
		return fmt.Errorf("asset %s already registered", a.ID)
	}
	r.assets[a.ID] = a
	return nil
}

// Upsert adds or replaces an asset.
func (r *Registry) Upsert(a AssetConfig) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.assets[a.ID] = a
	r.mu.Unlock()
	return nil
}

// Get retrieves an asset by id
func (r *Registry) Get(id string) (AssetConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.assets[id]
	if !exists {
		return AssetConfig{}, fmt.Errorf("asset %s not found", id)
	}
	return a, nil
}

// DisplayName returns the pair name for id, if known.
func (r *Registry) DisplayName(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[id]
	if !ok {
		return "", false
	}
	return a.Name, true
}

// Lookup is Get without the error, for callers that only branch on presence.
func (r *Registry) Lookup(id string) (AssetConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	return a, ok
}

// List returns all assets sorted by id.
func (r *Registry) List() []AssetConfig {
	r.mu.RLock()
	out := make([]AssetConfig, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the total number of registered assets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

// Exists checks if an asset is registered
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.assets[id]
	return exists
}

// SpotMeta is the subset of the exchange's "spotMeta" response the registry uses.
type SpotMeta struct {
	Universe []SpotPair  `json:"universe"`
	Tokens   []SpotToken `json:"tokens"`
}

type SpotPair struct {
	Name   string `json:"name"`
	Tokens []int  `json:"tokens"` // [base, quote] token indexes
	Index  int    `json:"index"`
}

type SpotToken struct {
	Name       string `json:"name"`
	SzDecimals int32  `json:"szDecimals"`
	Index      int    `json:"index"`
}

// ApplySpotMeta refreshes lot precision (and empty base names) of registered
// assets from exchange metadata. Unregistered pairs are ignored.
// Returns the number of assets updated.
func (r *Registry) ApplySpotMeta(meta SpotMeta) int {
	tokens := make(map[int]SpotToken, len(meta.Tokens))
	for _, t := range meta.Tokens {
		tokens[t.Index] = t
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, pair := range meta.Universe {
		id := fmt.Sprintf("@%d", pair.Index)
		a, ok := r.assets[id]
		if !ok || len(pair.Tokens) < 2 {
			continue
		}
		base, ok := tokens[pair.Tokens[0]]
		if !ok || base.SzDecimals < 0 {
			continue
		}
		a.LotPrecision = base.SzDecimals
		if a.Base == "" {
			a.Base = base.Name
		}
		if quote, ok := tokens[pair.Tokens[1]]; ok && a.Quote == "" {
			a.Quote = quote.Name
		}
		r.assets[id] = a
		updated++
	}
	return updated
}

// spotNames maps spot keys to their pairs. Spot markets start at @142.
var spotNames = map[string]string{
	"@142": "BTC/USDC",
	"@143": "ETH/USDC",
	"@144": "SOL/USDC",
	"@145": "ARB/USDC",
	"@146": "AVAX/USDC",
	"@147": "DOGE/USDC",
	"@148": "LTC/USDC",
	"@149": "BCH/USDC",
	"@150": "APT/USDC",
	"@151": "SUI/USDC",
	"@152": "OP/USDC",
	"@153": "INJ/USDC",
	"@154": "ORDI/USDC",
	"@155": "SEI/USDC",
	"@156": "BLUR/USDC",
	"@157": "LINK/USDC",
	"@158": "PEPE/USDC",
	"@159": "SHIB/USDC",
	"@160": "MATIC/USDC",
	"@161": "BNB/USDC",
	"@162": "TIA/USDC",
	"@163": "MANTA/USDC",
	"@164": "WIF/USDC",
	"@165": "JTO/USDC",
	"@166": "ATOM/USDC",
	"@167": "STX/USDC",
	"@168": "PYTH/USDC",
	"@169": "XRP/USDC",
	"@170": "FIL/USDC",
	"@171": "TAO/USDC",
	"@172": "WLD/USDC",
	"@173": "NEAR/USDC",
	"@174": "RNDR/USDC",
	"@175": "FTM/USDC",
	"@176": "TRX/USDC",
	"@177": "RUNE/USDC",
	"@178": "AAVE/USDC",
	"@179": "MKR/USDC",
	"@180": "MEME/USDC",
	"@181": "DYDX/USDC",
	"@182": "ICP/USDC",
	"@183": "IMX/USDC",
	"@184": "CRV/USDC",
	"@185": "TON/USDC",
	"@186": "APE/USDC",
	"@187": "ADA/USDC",
	"@188": "DOT/USDC",
	"@189": "LDO/USDC",
	"@190": "STG/USDC",
	"@191": "UNI/USDC",
	"@192": "SUSHI/USDC",
}

// DefaultRegistry returns the built-in spot table. BTC/USDC carries its own
// tick and lot; every other pair starts from the defaults until spot metadata
// or an assets file refines it.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for id, name := range spotNames {
		if id == DefaultBTCUSDC.ID {
			continue
		}
		idx, _ := ParseAssetIndex(id)
		base, quote, _ := strings.Cut(name, "/")
		r.assets[id] = AssetConfig{
			ID:           id,
			Index:        idx,
			Name:         name,
			Base:         base,
			Quote:        quote,
			TickSize:     DefaultTickSize,
			LotPrecision: DefaultLotPrecision,
		}
	}
	r.assets[DefaultBTCUSDC.ID] = DefaultBTCUSDC
	return r
}

// assetsFile is the YAML layout of an assets override file.
//
//	assets:
//	  - id: "@142"
//	    name: BTC/USDC
//	    base: UBTC
//	    quote: USDC
//	    aliases: [BTC]
//	    tick_size: "1"
//	    lot_precision: 5
//	    denomination: usd
type assetsFile struct {
	Assets []assetEntry `yaml:"assets"`
}

type assetEntry struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Base         string   `yaml:"base"`
	Quote        string   `yaml:"quote"`
	Aliases      []string `yaml:"aliases"`
	TickSize     string   `yaml:"tick_size"`
	LotPrecision *int32   `yaml:"lot_precision"`
	Denomination string   `yaml:"denomination"`
}

// LoadFile applies a YAML assets file on top of the registry. Entries for
// known ids override only the fields they set; unknown ids must be complete.
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read assets file: %w", err)
	}
	return r.LoadYAML(data)
}

func (r *Registry) LoadYAML(data []byte) (int, error) {
	var f assetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse assets file: %w", err)
	}

	applied := 0
	for i, e := range f.Assets {
		a, _ := r.Lookup(e.ID)
		a.ID = e.ID
		if idx, err := ParseAssetIndex(e.ID); err == nil {
			a.Index = idx
		} else {
			return applied, fmt.Errorf("assets[%d]: %w", i, err)
		}
		if e.Name != "" {
			a.Name = e.Name
		}
		if e.Base != "" {
			a.Base = e.Base
		}
		if e.Quote != "" {
			a.Quote = e.Quote
		}
		if len(e.Aliases) > 0 {
			a.BaseAliases = e.Aliases
		}
		if e.TickSize != "" {
			tick, err := ParseDecimal("tick_size", e.TickSize)
			if err != nil {
				return applied, fmt.Errorf("assets[%d]: %w", i, err)
			}
			a.TickSize = tick
		}
		if e.LotPrecision != nil {
			a.LotPrecision = *e.LotPrecision
		}
		if e.Denomination != "" {
			a.Denomination = Denomination(strings.ToLower(e.Denomination))
		}
		if err := r.Upsert(a); err != nil {
			return applied, fmt.Errorf("assets[%d]: %w", i, err)
		}
		applied++
	}
	return applied, nil
}
