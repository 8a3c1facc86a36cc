// Package contract wraps read-only contract calls: ABI packing, eth_call
// through a circuit breaker, and output decoding.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
)

// Caller is satisfied by *ethclient.Client.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Contract is an ABI bound to an address.
type Contract struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
	from    common.Address
	cb      *circuitbreaker.CircuitBreaker[[]byte]
}

// New parses abiJSON and binds it to address. A nil breaker disables circuit breaking.
func New(address common.Address, abiJSON string, caller Caller, cb *circuitbreaker.CircuitBreaker[[]byte]) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return &Contract{address: address, abi: parsed, caller: caller, cb: cb}, nil
}

// MustParse parses an ABI known at compile time.
func MustParse(abiJSON string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic("contract: invalid abi: " + err.Error())
	}
	return parsed
}

// Address returns the bound address.
func (c *Contract) Address() common.Address { return c.address }

// ABI returns the parsed ABI.
func (c *Contract) ABI() abi.ABI { return c.abi }

// At returns the same ABI bound to another address, sharing caller and breaker.
func (c *Contract) At(address common.Address) *Contract {
	cp := *c
	cp.address = address
	return &cp
}

// From returns a copy that sets msg.sender on calls.
func (c *Contract) From(sender common.Address) *Contract {
	cp := *c
	cp.from = sender
	return &cp
}

// Call executes method at block (nil = latest) and returns the decoded outputs.
func (c *Contract) Call(ctx context.Context, block *big.Int, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("pack %s", method)))
	}

	msg := ethereum.CallMsg{From: c.from, To: &c.address, Data: data}
	call := func() ([]byte, error) { return c.caller.CallContract(ctx, msg, block) }

	var out []byte
	if c.cb != nil {
		out, err = c.cb.Execute(call)
	} else {
		out, err = call()
	}
	if err != nil {
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s at %s", method, c.address.Hex())))
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, apperror.New(apperror.CodeDecodeFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("unpack %s at %s", method, c.address.Hex())))
	}
	return values, nil
}

// CallAddress calls a method returning a single address.
func (c *Contract) CallAddress(ctx context.Context, block *big.Int, method string, args ...any) (common.Address, error) {
	values, err := c.Call(ctx, block, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := first[common.Address](values)
	if !ok {
		return common.Address{}, decodeError(method, c.address)
	}
	return addr, nil
}

// CallBig calls a method returning a single integer wider than 64 bits.
func (c *Contract) CallBig(ctx context.Context, block *big.Int, method string, args ...any) (*big.Int, error) {
	values, err := c.Call(ctx, block, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := first[*big.Int](values)
	if !ok {
		return nil, decodeError(method, c.address)
	}
	return v, nil
}

func first[T any](values []any) (T, bool) {
	var zero T
	if len(values) == 0 {
		return zero, false
	}
	v, ok := values[0].(T)
	return v, ok
}

func decodeError(method string, addr common.Address) error {
	return apperror.New(apperror.CodeDecodeFailed,
		apperror.WithContext(fmt.Sprintf("unexpected output type for %s at %s", method, addr.Hex())))
}

// RevertReason extracts the Error(string) reason from a failed call.
func RevertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason, true
				}
			}
		}
	}

	const marker = "execution reverted: "
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if i := strings.Index(msg, marker); i >= 0 {
			return strings.TrimSpace(msg[i+len(marker):]), true
		}
	}
	return "", false
}
