package main

import (
	"context"

	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/pocs"
	"github.com/code-payments/poc-ledger/pkg/pocs/level0"
	"github.com/code-payments/poc-ledger/pkg/pocs/level1"
	"github.com/code-payments/poc-ledger/pkg/pocs/level2"
	"github.com/code-payments/poc-ledger/pkg/pocs/level3"
	"github.com/code-payments/poc-ledger/pkg/pocs/level4"
)

type scenario struct {
	level   int
	name    string
	options func() []localenv.Option
	run     func(context.Context, *localenv.Environment) (*pocs.Report, error)
}

var scenarios = []scenario{
	{level0.Level, level0.Name, level0.Options, level0.Run},
	{level1.Level, level1.Name, level1.Options, level1.Run},
	{level2.Level, level2.Name, level2.Options, level2.Run},
	{level3.Level, level3.Name, level3.Options, level3.Run},
	{level4.Level, level4.Name, level4.Options, level4.Run},
}

func findScenario(level int) (scenario, bool) {
	for _, s := range scenarios {
		if s.level == level {
			return s, true
		}
	}
	return scenario{}, false
}
