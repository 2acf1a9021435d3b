// internal/payments/asset.go
package payments

import "fmt"

type AssetKind string

const (
	AssetKindNative AssetKind = "native"
	AssetKindToken  AssetKind = "token"
)

// Asset is the closed set of transferable value kinds the verifier
// understands: the chain's base currency, or a fungible token identified
// by its mint.
type Asset struct {
	Kind     AssetKind `json:"kind"`
	Symbol   string    `json:"symbol"`
	Mint     string    `json:"mint,omitempty"`
	Decimals int       `json:"decimals"`
}

func NativeAsset() Asset {
	return Asset{Kind: AssetKindNative, Symbol: "SOL", Decimals: 9}
}

func TokenAsset(symbol, mint string, decimals int) Asset {
	return Asset{Kind: AssetKindToken, Symbol: symbol, Mint: mint, Decimals: decimals}
}

func (a Asset) Validate() error {
	switch a.Kind {
	case AssetKindNative:
		// no mint for the base currency
	case AssetKindToken:
		if a.Mint == "" {
			return fmt.Errorf("token asset %q requires a mint address", a.Symbol)
		}
	default:
		return fmt.Errorf("unsupported asset kind %q", a.Kind)
	}

	if a.Decimals < 0 || a.Decimals > 18 {
		return fmt.Errorf("asset %q has invalid decimal count %d", a.Symbol, a.Decimals)
	}
	return nil
}
