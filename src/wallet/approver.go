package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
)

// TxRequest describes a write the signer is asked to approve
type TxRequest struct {
	Method   string
	ActionId string
	ChainID  *big.Int
}

// Approver stands in for the wallet's confirmation prompts. Declining a
// transaction surfaces as model.ErrRejected, declining a switch as
// model.ErrSwitchRejected.
type Approver interface {
	ApproveTransaction(ctx context.Context, req TxRequest) bool
	ApproveSwitch(ctx context.Context, from, to *big.Int) bool
}

type autoApprover struct{}

// AutoApprove signs everything, used by daemons holding their own key
func AutoApprove() Approver { return autoApprover{} }

func (autoApprover) ApproveTransaction(context.Context, TxRequest) bool { return true }
func (autoApprover) ApproveSwitch(context.Context, *big.Int, *big.Int) bool {
	return true
}

// PromptApprover asks y/n questions on an interactive terminal
type PromptApprover struct {
	lock sync.Mutex
	in   *bufio.Reader
	out  io.Writer
}

func NewPromptApprover(in io.Reader, out io.Writer) *PromptApprover {
	return &PromptApprover{in: bufio.NewReader(in), out: out}
}

func (p *PromptApprover) ApproveTransaction(_ context.Context, req TxRequest) bool {
	return p.ask(fmt.Sprintf("sign %s(%q) on chain %s?", req.Method, req.ActionId, req.ChainID))
}

func (p *PromptApprover) ApproveSwitch(_ context.Context, from, to *big.Int) bool {
	return p.ask(fmt.Sprintf("switch network from chain %s to chain %s?", from, to))
}

func (p *PromptApprover) ask(question string) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	fmt.Fprintf(p.out, "%s [y/N] ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
