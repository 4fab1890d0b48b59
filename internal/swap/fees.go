// Package swap builds outbound URLs for swap price/quote requests,
// composing caller parameters with the platform's mandatory fee fields.
//
// Composition rules:
//   - no caller fee recipient: the platform recipient/bps are appended;
//   - caller already set a recipient: the platform entry is appended as an
//     additional comma-separated value on both lists, which stay
//     index-aligned (entry i of the bps list belongs to recipient i);
//   - the surplus recipient takes a single address: it is set only when the
//     caller left it unset, never appended to.
//
// The result is deterministic for a given input and platform config, and no
// caller-supplied parameter is ever dropped or reordered.
package swap

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"atlasgw/internal/config"
)

// Upstream query field names (0x API v2).
const (
	FieldFeeRecipient     = "swapFeeRecipient"
	FieldFeeBps           = "swapFeeBps"
	FieldSurplusRecipient = "tradeSurplusRecipient"
)

// Param is one query parameter. A slice of Params preserves the caller's
// ordering, which url.Values would not.
type Param struct {
	Key   string
	Value string
}

// Required parameter sets, checked before any outbound call is made.
var (
	RequiredPriceParams = []string{"chainId", "sellToken", "buyToken", "sellAmount"}
	RequiredQuoteParams = []string{"chainId", "sellToken", "buyToken", "sellAmount", "taker"}
)

// ValidateRequired reports the first missing required field by name.
func ValidateRequired(params []Param, required []string) error {
	for _, name := range required {
		if _, ok := find(params, name); !ok {
			return fmt.Errorf("missing required parameter %q", name)
		}
	}
	return nil
}

// Compose merges the platform fee spec into the caller's parameters.
// All returned errors are caller input errors.
func Compose(params []Param, fees config.FeeSpec) ([]Param, error) {
	for _, name := range []string{FieldFeeRecipient, FieldFeeBps, FieldSurplusRecipient} {
		if countKey(params, name) > 1 {
			return nil, fmt.Errorf("duplicate parameter %q", name)
		}
	}

	out := make([]Param, len(params))
	copy(out, params)

	recipientIdx, hasRecipient := find(out, FieldFeeRecipient)
	bpsIdx, hasBps := find(out, FieldFeeBps)

	platformBps := strconv.Itoa(fees.Bps)

	switch {
	case hasRecipient && !hasBps:
		return nil, fmt.Errorf("%q is required when %q is set", FieldFeeBps, FieldFeeRecipient)
	case hasBps && !hasRecipient:
		return nil, fmt.Errorf("%q is required when %q is set", FieldFeeRecipient, FieldFeeBps)
	case hasRecipient:
		recipients := strings.Split(out[recipientIdx].Value, ",")
		bpsList := strings.Split(out[bpsIdx].Value, ",")
		if len(recipients) != len(bpsList) {
			return nil, fmt.Errorf("%q and %q must have the same number of entries", FieldFeeRecipient, FieldFeeBps)
		}
		for _, entry := range bpsList {
			if _, err := strconv.Atoi(strings.TrimSpace(entry)); err != nil {
				return nil, fmt.Errorf("invalid %q entry %q: must be an integer", FieldFeeBps, entry)
			}
		}
		// Caller entries first, platform entry appended, lists stay aligned.
		out[recipientIdx].Value = out[recipientIdx].Value + "," + fees.Recipient
		out[bpsIdx].Value = out[bpsIdx].Value + "," + platformBps
	default:
		out = append(out,
			Param{Key: FieldFeeRecipient, Value: fees.Recipient},
			Param{Key: FieldFeeBps, Value: platformBps},
		)
	}

	if fees.SurplusRecipient != "" {
		if _, ok := find(out, FieldSurplusRecipient); !ok {
			out = append(out, Param{Key: FieldSurplusRecipient, Value: fees.SurplusRecipient})
		}
	}

	return out, nil
}

// EncodeQuery renders params in order as a URL query string. Commas are
// kept literal (they are valid query sub-delimiters) so multi-entry fee
// lists stay readable and byte-stable.
func EncodeQuery(params []Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p.Key))
		b.WriteByte('=')
		b.WriteString(escape(p.Value))
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%2C", ",")
}

func find(params []Param, key string) (int, bool) {
	for i, p := range params {
		if p.Key == key {
			return i, true
		}
	}
	return 0, false
}

func countKey(params []Param, key string) int {
	n := 0
	for _, p := range params {
		if p.Key == key {
			n++
		}
	}
	return n
}
