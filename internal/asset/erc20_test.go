package asset

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPackAmountCall(t *testing.T) {
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	data, err := packAmountCall("transfer", big.NewInt(1000), to)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	parsed, err := erc20ABIInstance()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		t.Fatalf("method id: %v", err)
	}
	if method.Name != "transfer" {
		t.Fatalf("method mismatch: %s", method.Name)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if values[0].(common.Address) != to || values[1].(*big.Int).Int64() != 1000 {
		t.Fatalf("args mismatch: %v", values)
	}
}

func TestPackAmountCallRejectsOverflow(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := packAmountCall("transfer", tooBig, common.Address{}); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := packAmountCall("approve", big.NewInt(-1), common.Address{}); err == nil {
		t.Fatalf("expected negative amount error")
	}
}

func TestNewERC20LedgerRequiresClient(t *testing.T) {
	if _, err := NewERC20Ledger(nil, "", ERC20Config{}, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
