// Package common contains common constants and variables used across services
package common

import ethcommon "github.com/ethereum/go-ethereum/common"

var (
	// WETHMainnet is the canonical wrapped-ether contract on mainnet,
	// used as the default hop token when WETH_ADDRESS is not configured.
	WETHMainnet = ethcommon.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	// NativeETH is the pseudo-address wallets and aggregator frontends use
	// for unwrapped ether. Requests quoting it are normalized to WETH.
	NativeETH = ethcommon.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

	ZeroAddress = ethcommon.Address{}
)
