package infra

import (
	"context"
	"time"
)

// startJanitor executa fn a cada every até o ctx encerrar.
func startJanitor(ctx context.Context, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}
