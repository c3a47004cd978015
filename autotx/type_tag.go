package autotx

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TypeTag is the canonical textual form of a Move type, e.g. "u64" or
// "0x2::coin::Coin<0x2::sui::SUI>".
type TypeTag string

// StructTag identifies a Move struct type together with its type parameters.
type StructTag struct {
	Address    common.Hash `json:"address"`
	Module     string      `json:"module"`
	Name       string      `json:"name"`
	TypeParams []TypeTag   `json:"typeParams"`
}

// TypeTag renders the struct tag in canonical form. Addresses are printed
// without leading zeros.
func (s StructTag) TypeTag() TypeTag {
	b := strings.Builder{}
	b.WriteString(ShortHex(s.Address))
	b.WriteString("::")
	b.WriteString(s.Module)
	b.WriteString("::")
	b.WriteString(s.Name)
	if len(s.TypeParams) > 0 {
		b.WriteString("<")
		for i, p := range s.TypeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(string(p))
		}
		b.WriteString(">")
	}
	return TypeTag(b.String())
}

func (s StructTag) String() string {
	return string(s.TypeTag())
}

// Equal reports whether both tags denote the same type.
func (s StructTag) Equal(o StructTag) bool {
	return s.TypeTag() == o.TypeTag()
}

// ShortHex prints a 32 byte address as 0x-prefixed hex without leading zeros.
func ShortHex(h common.Hash) string {
	return "0x" + h.Big().Text(16)
}
