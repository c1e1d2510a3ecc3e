package ethereum

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
)

const sampleTrace = `{
  "from": "0x1111111111111111111111111111111111111111",
  "gas": "0x30d40",
  "gasUsed": "0x1d4c0",
  "to": "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
  "input": "0x38ed1739",
  "calls": [
    {
      "from": "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
      "gas": "0x2710",
      "gasUsed": "0x100",
      "to": "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc",
      "input": "0x022c0d9f",
      "logs": [
        {
          "address": "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc",
          "topics": [
            "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822",
            "0x0000000000000000000000007a250d5630b4cf539739df2c5dacb4c659f2488d"
          ],
          "data": "0x01",
          "position": "0x0"
        }
      ],
      "value": "0x0",
      "type": "CALL"
    }
  ],
  "value": "0xde0b6b3a7640000",
  "type": "CALL"
}`

func TestDecodeCallFrame(t *testing.T) {
	frame, err := DecodeCallFrame([]byte(sampleTrace))
	if err != nil {
		t.Fatalf("DecodeCallFrame: %v", err)
	}

	if frame.Type != "CALL" || frame.Reverted() {
		t.Errorf("root = %s reverted=%v", frame.Type, frame.Reverted())
	}
	if uint64(frame.Gas) != 200_000 {
		t.Errorf("gas = %d", frame.Gas)
	}
	if len(frame.Calls) != 1 || len(frame.Calls[0].Logs) != 1 {
		t.Fatalf("nested structure lost: %+v", frame)
	}

	log := frame.Calls[0].Logs[0]
	if log.Address != common.HexToAddress("0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc") {
		t.Errorf("log address = %s", log.Address.Hex())
	}
	if len(log.Topics) != 2 || log.Topics[0][0] != 0xd7 {
		t.Errorf("topics = %v", log.Topics)
	}
}

func TestDecodeCallFrameRejectsUnknownShapes(t *testing.T) {
	for _, raw := range []string{``, `null`, `{"structLogs": []}`, `[1,2]`} {
		_, err := DecodeCallFrame([]byte(raw))
		if !apperror.HasCode(err, apperror.CodeUnknownTraceFormat) {
			t.Errorf("DecodeCallFrame(%q) err = %v, want UNKNOWN_TRACE_FORMAT", raw, err)
		}
	}
}

func TestTraceCallArgsFeeFields(t *testing.T) {
	to := common.HexToAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d")

	dynamic := &domain.PendingTx{
		From: common.HexToAddress("0x01"), To: &to, Nonce: 9, Gas: 21_000,
		GasFeeCap: big.NewInt(30), GasTipCap: big.NewInt(2), GasPrice: big.NewInt(30),
		Type: types.DynamicFeeTxType, Value: big.NewInt(1),
	}
	legacy := &domain.PendingTx{
		From: common.HexToAddress("0x01"), To: &to, Gas: 21_000,
		GasPrice: big.NewInt(25), Type: types.LegacyTxType,
	}

	var got map[string]any
	raw, _ := json.Marshal(newTraceCallArgs(dynamic))
	_ = json.Unmarshal(raw, &got)
	if got["maxFeePerGas"] != "0x1e" || got["maxPriorityFeePerGas"] != "0x2" {
		t.Errorf("dynamic fee fields = %v", got)
	}
	if _, ok := got["gasPrice"]; ok {
		t.Error("gasPrice must not be sent with fee caps")
	}
	if got["nonce"] != "0x9" {
		t.Errorf("nonce = %v", got["nonce"])
	}

	got = nil
	raw, _ = json.Marshal(newTraceCallArgs(legacy))
	_ = json.Unmarshal(raw, &got)
	if got["gasPrice"] != "0x19" {
		t.Errorf("legacy gasPrice = %v", got["gasPrice"])
	}
	if _, ok := got["maxFeePerGas"]; ok {
		t.Error("legacy call must not carry fee caps")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    int64
	}{
		{1, 1}, {2, 2}, {3, 4}, {6, 30}, {20, 30},
	}
	for _, tt := range tests {
		got := backoff(1e9, 30e9, tt.attempt)
		if int64(got/1e9) != tt.want {
			t.Errorf("backoff(attempt=%d) = %s, want %ds", tt.attempt, got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := redact("wss://mainnet.infura.io/ws/v3/SECRET"); got != "wss://mainnet.infura.io" {
		t.Errorf("redact = %q", got)
	}
}
