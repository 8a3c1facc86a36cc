package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_DefaultMessageAndRetry(t *testing.T) {
	tests := []struct {
		code      Code
		retryable bool
	}{
		{CodeInvalidProposal, false},
		{CodePoolUnavailable, true},
		{CodeInsufficientLiquidity, true},
		{CodeInsufficientToRepay, false},
		{CodeProfitBelowMinimum, false},
		{CodeEthereumRPCError, true},
		{CodeUnsupportedBorrowToken, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code)
			if err.Message != messages[tt.code] {
				t.Errorf("Message = %q, want %q", err.Message, messages[tt.code])
			}
			if err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", err.Retryable, tt.retryable)
			}
		})
	}
}

func TestWrap_PreservesCodeThroughChain(t *testing.T) {
	base := New(CodePoolUnavailable, WithContext("yes pool"))
	wrapped := fmt.Errorf("snapshot: %w", base)

	if !HasCode(wrapped, CodePoolUnavailable) {
		t.Errorf("GetCode = %s, want %s", GetCode(wrapped), CodePoolUnavailable)
	}
	if !errors.Is(wrapped, New(CodePoolUnavailable)) {
		t.Error("errors.Is should match on code")
	}

	plain := Wrap(errors.New("rpc down"), CodeEthereumRPCError, "slot0")
	if plain.Code != CodeEthereumRPCError || plain.Unwrap() == nil {
		t.Errorf("Wrap = %v, want RPC error with cause", plain)
	}
}
