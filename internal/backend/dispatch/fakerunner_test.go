package dispatch

import (
	"context"

	"github.com/jo-hoe/cdbgen/internal/backend/tool"
)

// fakeRunner records invocations and replays canned output
type fakeRunner struct {
	invocations []tool.Invocation
	output      []string
	errFor      func(tool.Invocation) error
	onRun       func()
}

func (f *fakeRunner) Run(_ context.Context, invocation tool.Invocation, onLine tool.LineFunc) (tool.Result, error) {
	f.invocations = append(f.invocations, invocation)
	if f.onRun != nil {
		f.onRun()
	}
	for _, line := range f.output {
		onLine(line)
	}
	if f.errFor != nil {
		if err := f.errFor(invocation); err != nil {
			return tool.Result{ExitCode: 1, Lines: len(f.output)}, err
		}
	}
	return tool.Result{ExitCode: 0, Lines: len(f.output)}, nil
}
