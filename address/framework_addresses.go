package address

import "github.com/ethereum/go-ethereum/common"

// FrameworkAddress hosts the coin and auto_tx modules.
var FrameworkAddress = common.HexToHash("0x2")
