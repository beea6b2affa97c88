package model

import "math/big"

// Base Sepolia, where the PsychologyCoins contract lives
const DefaultChainID = 84532

type NetworkState struct {
	CurrentChainId  *big.Int `json:"current_chain_id"`
	RequiredChainId *big.Int `json:"required_chain_id"`
	IsCorrect       bool     `json:"is_correct"`
	IsSwitching     bool     `json:"is_switching"`
}
