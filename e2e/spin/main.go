// spin is a test workload burning CPU in two distinguishable call
// chains, so a sampling run produces at least two distinct stacks with
// markedly different counts.
package main

import (
	"math"
	"os"
	"os/signal"
	"syscall"
)

var sink float64

func hotLoop() {
	for i := 0; i < 1<<16; i++ {
		sink += math.Sqrt(float64(i))
	}
}

func coldLoop() {
	for i := 0; i < 1<<10; i++ {
		sink += math.Cbrt(float64(i))
	}
}

func main() {
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			hotLoop()
			coldLoop()
		}
	}()

	<-done
}
