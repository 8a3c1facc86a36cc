// Package contracttest provides an in-memory contract caller for tests.
package contracttest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type response struct {
	out []byte
	err error
}

// FakeCaller answers eth_call from canned, ABI-encoded responses. Responses
// registered with arguments match exact calldata; others match by selector.
type FakeCaller struct {
	tb testing.TB

	mu        sync.Mutex
	exact     map[string]response
	bySelect  map[string]response
	callCount int
}

// NewFakeCaller creates an empty fake.
func NewFakeCaller(tb testing.TB) *FakeCaller {
	return &FakeCaller{
		tb:       tb,
		exact:    make(map[string]response),
		bySelect: make(map[string]response),
	}
}

// Set answers any call of method at to with outputs.
func (f *FakeCaller) Set(to common.Address, parsed abi.ABI, method string, outputs ...any) {
	f.tb.Helper()
	m := f.method(parsed, method)
	out, err := m.Outputs.Pack(outputs...)
	if err != nil {
		f.tb.Fatalf("contracttest: pack %s outputs: %v", method, err)
	}
	f.mu.Lock()
	f.bySelect[selectorKey(to, m.ID)] = response{out: out}
	f.mu.Unlock()
}

// SetWithArgs answers method(args...) at to with outputs.
func (f *FakeCaller) SetWithArgs(to common.Address, parsed abi.ABI, method string, args []any, outputs ...any) {
	f.tb.Helper()
	m := f.method(parsed, method)
	data, err := parsed.Pack(method, args...)
	if err != nil {
		f.tb.Fatalf("contracttest: pack %s args: %v", method, err)
	}
	out, err := m.Outputs.Pack(outputs...)
	if err != nil {
		f.tb.Fatalf("contracttest: pack %s outputs: %v", method, err)
	}
	f.mu.Lock()
	f.exact[exactKey(to, data)] = response{out: out}
	f.mu.Unlock()
}

// SetError makes any call of method at to fail with err.
func (f *FakeCaller) SetError(to common.Address, parsed abi.ABI, method string, err error) {
	f.tb.Helper()
	m := f.method(parsed, method)
	f.mu.Lock()
	f.bySelect[selectorKey(to, m.ID)] = response{err: err}
	f.mu.Unlock()
}

// Calls returns the number of calls served.
func (f *FakeCaller) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// CallContract implements contract.Caller.
func (f *FakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++

	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("contracttest: malformed call")
	}
	if r, ok := f.exact[exactKey(*msg.To, msg.Data)]; ok {
		return r.out, r.err
	}
	if r, ok := f.bySelect[selectorKey(*msg.To, msg.Data[:4])]; ok {
		return r.out, r.err
	}
	return nil, fmt.Errorf("contracttest: no response for %x at %s", msg.Data[:4], msg.To.Hex())
}

func (f *FakeCaller) method(parsed abi.ABI, name string) abi.Method {
	m, ok := parsed.Methods[name]
	if !ok {
		f.tb.Fatalf("contracttest: abi has no method %q", name)
	}
	return m
}

func selectorKey(to common.Address, selector []byte) string {
	return fmt.Sprintf("%s/%x", to.Hex(), selector)
}

func exactKey(to common.Address, data []byte) string {
	return fmt.Sprintf("%s/%x", to.Hex(), data)
}
