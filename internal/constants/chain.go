package constants

// Event signatures watched on chain.
const (
	// TopicV2PairCreated is keccak256("PairCreated(address,address,address,uint256)")
	TopicV2PairCreated = "0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9"

	// TopicV3NewToken is the pool/token creation event of the V3 factory
	TopicV3NewToken = "0xe1cf7aada88886bb170a3d9ac4236616de96205174f63e5506fdd6e24582d836"

	// TopicOwnershipTransferred is keccak256("OwnershipTransferred(address,address)")
	TopicOwnershipTransferred = "0x8be0079c531659141344cd1fd0a4f28419497f9722a3daafe3b4186f6b6457e0"
)

// Well-known base-pair tokens on Ethereum mainnet.
const (
	TokenWETH = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	TokenUSDC = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	TokenUSDT = "0xdac17f958d2ee523a2206206994597c13d831ec7"
)

// ZeroAddress is the all-zero address; an ownership transfer to it renounces ownership.
const ZeroAddress = "0x0000000000000000000000000000000000000000"
