package main

import (
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// barProgress shows a dump run as a terminal progress bar on stderr
type barProgress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

func (b *barProgress) Start(total int) {
	b.p = mpb.New(mpb.WithWidth(60), mpb.WithOutput(os.Stderr))
	b.bar = b.p.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|"),
		mpb.PrependDecorators(
			decor.Name("classes ", decor.WC{C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
		),
	)
}

func (b *barProgress) Increment() {
	b.bar.Increment()
}

// Finish stops a bar that did not reach its total (cancelled run, duplicate candidates)
func (b *barProgress) Finish() {
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.p.Wait()
}
