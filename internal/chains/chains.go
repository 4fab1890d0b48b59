// Package chains maps caller-facing network aliases to upstream provider
// endpoints. The table is static configuration: it is never mutated at
// runtime and multiple aliases may resolve to the same network.
package chains

import (
	"fmt"
	"sort"
	"strings"
)

// Template selects how the upstream URL is assembled for a network.
type Template int

const (
	// TemplateStandard inserts the network slug directly into the common
	// JSON-RPC path pattern. Almost every network uses this.
	TemplateStandard Template = iota

	// TemplateSpecialized is used by the Starknet family, whose endpoints
	// carry an extra RPC version path segment.
	TemplateSpecialized
)

// Definition is one resolved network entry.
type Definition struct {
	// Alias is the canonical caller-facing short name.
	Alias string

	// Slug is the provider-specific network identifier.
	Slug string

	Template Template
}

// Aliases are matched case-insensitively. Map order is irrelevant; List
// sorts by alias.
var definitions = map[string]Definition{
	"arb":              {Alias: "arb", Slug: "arb-mainnet"},
	"arbitrum":         {Alias: "arbitrum", Slug: "arb-mainnet"},
	"avax":             {Alias: "avax", Slug: "avax-mainnet"},
	"avalanche":        {Alias: "avalanche", Slug: "avax-mainnet"},
	"base":             {Alias: "base", Slug: "base-mainnet"},
	"base-sepolia":     {Alias: "base-sepolia", Slug: "base-sepolia"},
	"blast":            {Alias: "blast", Slug: "blast-mainnet"},
	"eth":              {Alias: "eth", Slug: "eth-mainnet"},
	"ethereum":         {Alias: "ethereum", Slug: "eth-mainnet"},
	"mainnet":          {Alias: "mainnet", Slug: "eth-mainnet"},
	"sepolia":          {Alias: "sepolia", Slug: "eth-sepolia"},
	"op":               {Alias: "op", Slug: "opt-mainnet"},
	"optimism":         {Alias: "optimism", Slug: "opt-mainnet"},
	"polygon":          {Alias: "polygon", Slug: "polygon-mainnet"},
	"matic":            {Alias: "matic", Slug: "polygon-mainnet"},
	"scroll":           {Alias: "scroll", Slug: "scroll-mainnet"},
	"zksync":           {Alias: "zksync", Slug: "zksync-mainnet"},
	"starknet":         {Alias: "starknet", Slug: "starknet-mainnet", Template: TemplateSpecialized},
	"starknet-sepolia": {Alias: "starknet-sepolia", Slug: "starknet-sepolia", Template: TemplateSpecialized},
}

// Resolve looks up an alias, case-insensitively. It never falls back to a
// default network: an unknown alias is the caller's error to fix.
func Resolve(alias string) (Definition, bool) {
	def, ok := definitions[strings.ToLower(strings.TrimSpace(alias))]
	return def, ok
}

// AliasInfo is one row of the public alias listing.
type AliasInfo struct {
	Alias string `json:"alias"`
	Slug  string `json:"network"`
}

// List returns every known alias, sorted for stable output.
func List() []AliasInfo {
	out := make([]AliasInfo, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, AliasInfo{Alias: def.Alias, Slug: def.Slug})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// RPCURL assembles the upstream JSON-RPC endpoint for a resolved network.
// The provider key is the only secret involved; it is embedded in the URL
// per the provider's scheme and must never appear in logs or responses.
func RPCURL(def Definition, apiKey string) string {
	switch def.Template {
	case TemplateSpecialized:
		return fmt.Sprintf("https://%s.g.alchemy.com/starknet/version/rpc/v0_8/%s", def.Slug, apiKey)
	default:
		return fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", def.Slug, apiKey)
	}
}
