package main

import (
	"context"
	"time"

	"github.com/pgallienne/stepper-control-system/firmware"
	"github.com/pgallienne/stepper-control-system/registers"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	board, err := newBoard()
	if err != nil {
		println("board init failed:", err.Error())
		return
	}

	regs := registers.NewMap()
	loop, err := firmware.New(board, regs)
	if err != nil {
		println("driver setup failed:", err.Error())
		return
	}
	println("ready")

	loop.Run(context.Background())
}
