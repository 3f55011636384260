package cmd

import (
	"fmt"
	"os"
	"sync/atomic"

	"records-migrate/internal/engine"
	"records-migrate/internal/logger"

	"github.com/gosuri/uiprogress"
)

// barProgress shows one progress bar per table.
type barProgress struct {
	p    *uiprogress.Progress
	bars map[string]*tableBar
}

type tableBar struct {
	bar  *uiprogress.Bar
	rows atomic.Int64
}

// newProgress returns bars on a terminal and nil otherwise.
func newProgress() *barProgress {
	if !logger.IsTerminal(os.Stdout) {
		return nil
	}
	p := uiprogress.New()
	p.Start()
	return &barProgress{p: p, bars: make(map[string]*tableBar)}
}

// observer returns p as an engine.Progress, keeping a nil p a nil interface.
func (p *barProgress) observer() engine.Progress {
	if p == nil {
		return nil
	}
	return p
}

func (p *barProgress) Start(table string, total int) {
	tb := &tableBar{}
	if total < 0 {
		total = 0
	}
	tb.bar = p.p.AddBar(total).PrependElapsed()
	tb.bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("%-16s", table)
	})
	if total > 0 {
		tb.bar.AppendCompleted()
	} else {
		tb.bar.AppendFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("%d rows", tb.rows.Load())
		})
	}
	p.bars[table] = tb
}

func (p *barProgress) Row(table string, o engine.RowOutcome) {
	tb, ok := p.bars[table]
	if !ok {
		return
	}
	tb.rows.Add(1)
	tb.bar.Incr()
}

func (p *barProgress) Done(table string) {}

func (p *barProgress) Stop() {
	if p != nil {
		p.p.Stop()
	}
}
