package autotx

import "fmt"

// SignerScheme selects who signs a materialized transaction and who must
// own its gas coin.
type SignerScheme uint8

const (
	// SignerTriggerID: the trigger object itself is the signer.
	SignerTriggerID SignerScheme = iota
	// SignerCaller: the caller declared inside the trigger is the signer.
	SignerCaller
)

func (s SignerScheme) String() string {
	switch s {
	case SignerTriggerID:
		return "trigger-id"
	case SignerCaller:
		return "caller"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func ParseSignerScheme(s string) (SignerScheme, error) {
	switch s {
	case "", "trigger-id":
		return SignerTriggerID, nil
	case "caller":
		return SignerCaller, nil
	default:
		return 0, fmt.Errorf("unknown signer scheme %q", s)
	}
}
