package model

import (
	"math/big"
	"strings"
)

type JournalStatus string
type WriteKind string

const TokenDecimals = 18 // PsychologyCoins uses the standard erc20 scaling

const ( // needs to match `journal_status` in pg
	JournalStatusSubmitted JournalStatus = "submitted"
	JournalStatusConfirmed JournalStatus = "confirmed"
	JournalStatusError     JournalStatus = "error"
)

const (
	WriteComplete   WriteKind = "complete"
	WriteUncomplete WriteKind = "uncomplete"
)

// CompletionRecord is the ledger's view of a single (account, action) pair.
// It is only ever read by the client, the contract owns it.
type CompletionRecord struct {
	HasCompleted    bool
	CompletionCount uint64
}

// EverCompleted reports whether the pair was completed at least once, even if
// it was later uncompleted.
func (cr CompletionRecord) EverCompleted() bool {
	return cr.HasCompleted || cr.CompletionCount > 0
}

// Balance is a token amount in base units (18 decimal fixed point)
type Balance struct {
	raw *big.Int
}

var tokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

func NewBalance(raw *big.Int) Balance {
	if raw == nil {
		return Balance{}
	}
	return Balance{raw: new(big.Int).Set(raw)}
}

// BalanceFromTokens builds a balance of n whole tokens
func BalanceFromTokens(n uint64) Balance {
	v := new(big.Int).SetUint64(n)
	return Balance{raw: v.Mul(v, tokenUnit)}
}

func (b Balance) Raw() *big.Int {
	if b.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.raw)
}

func (b Balance) IsZero() bool {
	return b.raw == nil || b.raw.Sign() == 0
}

func (b Balance) Add(other Balance) Balance {
	return Balance{raw: new(big.Int).Add(b.Raw(), other.Raw())}
}

// String renders the display decimal, trailing zeros trimmed ("0", "5", "1.25")
func (b Balance) String() string {
	raw := b.Raw()
	neg := raw.Sign() < 0
	raw.Abs(raw)
	whole, frac := new(big.Int).QuoRem(raw, tokenUnit, new(big.Int))
	out := whole.String()
	if frac.Sign() != 0 {
		digits := frac.String()
		digits = strings.Repeat("0", TokenDecimals-len(digits)) + digits
		out += "." + strings.TrimRight(digits, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Whole renders the balance rounded to the nearest whole token, halves
// away from zero ("1.5" is "2")
func (b Balance) Whole() string {
	raw := b.Raw()
	neg := raw.Sign() < 0
	raw.Abs(raw)
	whole, frac := new(big.Int).QuoRem(raw, tokenUnit, new(big.Int))
	if frac.Lsh(frac, 1).Cmp(tokenUnit) >= 0 {
		whole.Add(whole, big.NewInt(1))
	}
	if neg && whole.Sign() != 0 {
		whole.Neg(whole)
	}
	return whole.String()
}

func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}
