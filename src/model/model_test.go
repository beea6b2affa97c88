package model

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestBalanceFormatting(t *testing.T) {
	half, _ := new(big.Int).SetString("1500000000000000000", 10)
	dust, _ := new(big.Int).SetString("1", 10)
	belowHalf, _ := new(big.Int).SetString("2499999999999999999", 10)
	debt, _ := new(big.Int).SetString("-2500000000000000000", 10)
	cases := []struct {
		balance Balance
		display string
		whole   string
	}{
		{Balance{}, "0", "0"},
		{BalanceFromTokens(5), "5", "5"},
		{NewBalance(half), "1.5", "2"},
		{NewBalance(belowHalf), "2.499999999999999999", "2"},
		{NewBalance(debt), "-2.5", "-3"},
		{NewBalance(dust), "0.000000000000000001", "0"},
		{BalanceFromTokens(5).Add(BalanceFromTokens(1)), "6", "6"},
	}
	for _, c := range cases {
		if got := c.balance.String(); got != c.display {
			t.Errorf("expected display %s, got %s", c.display, got)
		}
		if got := c.balance.Whole(); got != c.whole {
			t.Errorf("expected whole %s, got %s", c.whole, got)
		}
	}
}

func TestActionIdRoundTrip(t *testing.T) {
	id := NewActionId(CategoryStartup, 2)
	if id != "startup-2" {
		t.Fatalf("unexpected id %s", id)
	}
	cat, idx, err := ParseActionId(string(id))
	if err != nil {
		t.Fatal(err)
	}
	if cat != CategoryStartup || idx != 2 {
		t.Fatalf("parsed %s/%d", cat, idx)
	}
	if NewActionId(CategoryMind, 0).Category() != CategoryMind {
		t.Fatal("interna category lost")
	}

	for _, bad := range []string{"", "startup", "startup-", "-1", "startup--1", "other-1", "interna-x"} {
		if _, _, err := ParseActionId(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestKindOf(t *testing.T) {
	got := map[string]ErrorKind{
		"nil":      KindOf(nil),
		"rejected": KindOf(errors.Wrap(ErrRejected, "completeAction")),
		"switch":   KindOf(&NetworkError{Err: errors.Wrap(ErrSwitchRejected, "x")}),
		"network":  KindOf(errors.Wrap(ErrNetwork, "no endpoint")),
		"rpc":      KindOf(errors.Wrap(ErrRpc, "boom")),
		"other":    KindOf(errors.New("what")),
	}
	expected := map[string]ErrorKind{
		"nil":      KindNone,
		"rejected": KindRejected,
		"switch":   KindSwitchRejected,
		"network":  KindNetwork,
		"rpc":      KindRpc,
		"other":    KindUnknown,
	}
	if d := cmp.Diff(expected, got); d != "" {
		t.Fatalf("unexpected kinds: %s", d)
	}
}
