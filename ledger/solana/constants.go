// Package solana reads payment transactions from a Solana RPC node.
package solana

import "fmt"

const (
	// Network names
	NetworkDevnet  = "devnet"
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet-beta"

	// Default RPC URLs
	DevnetRPCURL  = "https://api.devnet.solana.com"
	TestnetRPCURL = "https://api.testnet.solana.com"
	MainnetRPCURL = "https://api.mainnet-beta.solana.com"

	// USDC mint addresses
	USDCDevnetAddress  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
	USDCMainnetAddress = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	// DefaultDecimals is the decimal precision of USDC
	DefaultDecimals = 6
)

// NetworkConfig describes one Solana cluster
type NetworkConfig struct {
	Name     string
	RPCURL   string
	USDCMint string
}

var networkConfigs = map[string]NetworkConfig{
	NetworkDevnet: {
		Name:     NetworkDevnet,
		RPCURL:   DevnetRPCURL,
		USDCMint: USDCDevnetAddress,
	},
	NetworkTestnet: {
		Name:     NetworkTestnet,
		RPCURL:   TestnetRPCURL,
		USDCMint: USDCDevnetAddress,
	},
	NetworkMainnet: {
		Name:     NetworkMainnet,
		RPCURL:   MainnetRPCURL,
		USDCMint: USDCMainnetAddress,
	},
}

// GetNetworkConfig returns the configuration for a network name.
// "mainnet" is accepted as an alias of "mainnet-beta".
func GetNetworkConfig(network string) (NetworkConfig, error) {
	if network == "mainnet" {
		network = NetworkMainnet
	}
	cfg, ok := networkConfigs[network]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("unsupported network: %s", network)
	}
	return cfg, nil
}
