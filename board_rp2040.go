//go:build rp2040

package main

import "github.com/pgallienne/stepper-control-system/firmware"

func newBoard() (firmware.Board, error) {
	return firmware.NewPicoBoard()
}
