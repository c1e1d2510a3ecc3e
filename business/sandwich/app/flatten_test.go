package app

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
)

func logAt(n byte) chainDomain.CallLog {
	return chainDomain.CallLog{Address: common.BytesToAddress([]byte{n})}
}

func addresses(logs []chainDomain.CallLog) []byte {
	out := make([]byte, len(logs))
	for i, l := range logs {
		out[i] = l.Address.Bytes()[19]
	}
	return out
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		root *chainDomain.CallFrame
		want []byte
	}{
		{
			name: "nil root",
			root: nil,
			want: []byte{},
		},
		{
			name: "no logs",
			root: &chainDomain.CallFrame{Calls: []chainDomain.CallFrame{{}, {}}},
			want: []byte{},
		},
		{
			name: "own logs before sub-calls",
			root: &chainDomain.CallFrame{
				Logs: []chainDomain.CallLog{logAt(1)},
				Calls: []chainDomain.CallFrame{
					{
						Logs:  []chainDomain.CallLog{logAt(2)},
						Calls: []chainDomain.CallFrame{{Logs: []chainDomain.CallLog{logAt(3)}}},
					},
				},
			},
			want: []byte{1, 2, 3},
		},
		{
			name: "siblings depth first",
			root: &chainDomain.CallFrame{
				Calls: []chainDomain.CallFrame{
					{
						Logs:  []chainDomain.CallLog{logAt(1), logAt(2)},
						Calls: []chainDomain.CallFrame{{Logs: []chainDomain.CallLog{logAt(3)}}},
					},
					{Logs: []chainDomain.CallLog{logAt(4)}},
				},
				Logs: []chainDomain.CallLog{logAt(0)},
			},
			want: []byte{0, 1, 2, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, err := Flatten(tt.root)
			if err != nil {
				t.Fatalf("Flatten() error = %v", err)
			}
			got := addresses(logs)
			if string(got) != string(tt.want) {
				t.Errorf("Flatten() order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlattenTooDeep(t *testing.T) {
	root := &chainDomain.CallFrame{Logs: []chainDomain.CallLog{logAt(1)}}
	cur := root
	for i := 0; i < MaxCallDepth+1; i++ {
		cur.Calls = []chainDomain.CallFrame{{}}
		cur = &cur.Calls[0]
	}
	cur.Logs = []chainDomain.CallLog{logAt(2)}

	logs, err := Flatten(root)
	if !apperror.HasCode(err, apperror.CodeTraceTooDeep) {
		t.Fatalf("err = %v, want TRACE_TOO_DEEP", err)
	}
	if got := addresses(logs); string(got) != string([]byte{1}) {
		t.Errorf("partial logs = %v, want [1]", got)
	}
}

func TestFlattenAtMaxDepth(t *testing.T) {
	root := &chainDomain.CallFrame{}
	cur := root
	for i := 0; i < MaxCallDepth; i++ {
		cur.Calls = []chainDomain.CallFrame{{}}
		cur = &cur.Calls[0]
	}
	cur.Logs = []chainDomain.CallLog{logAt(9)}

	logs, err := Flatten(root)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("len(logs) = %d, want 1", len(logs))
	}
}
