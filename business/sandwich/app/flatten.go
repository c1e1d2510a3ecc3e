package app

import (
	"fmt"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
)

// MaxCallDepth is the EVM call depth limit.
const MaxCallDepth = 1024

type stackFrame struct {
	frame *chainDomain.CallFrame
	depth int
}

// Flatten returns every log in the call tree in execution order: a frame's own
// logs, then each sub-call depth-first. Trees deeper than MaxCallDepth return the
// logs collected so far with a TRACE_TOO_DEEP error.
func Flatten(root *chainDomain.CallFrame) ([]chainDomain.CallLog, error) {
	if root == nil {
		return nil, nil
	}

	var logs []chainDomain.CallLog
	stack := []stackFrame{{frame: root, depth: 0}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.depth > MaxCallDepth {
			return logs, apperror.New(apperror.CodeTraceTooDeep,
				apperror.WithContext(fmt.Sprintf("depth %d", top.depth)))
		}

		logs = append(logs, top.frame.Logs...)

		// pushed in reverse so the first sub-call is visited next
		for i := len(top.frame.Calls) - 1; i >= 0; i-- {
			stack = append(stack, stackFrame{frame: &top.frame.Calls[i], depth: top.depth + 1})
		}
	}

	return logs, nil
}
