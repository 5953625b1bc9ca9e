//go:build !rp2040

package main

import "github.com/pgallienne/stepper-control-system/firmware"

// Host builds run against the simulated board so firmware logic can be
// exercised without hardware. The link end stays unconnected.
func newBoard() (firmware.Board, error) {
	board, _ := firmware.NewSimBoard()
	return board.Board, nil
}
