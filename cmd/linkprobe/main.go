// linkprobe is a bring-up utility: one register read or write over the
// serial link, result on stdout.
//
//	linkprobe -device /dev/ttyACM0 read 0x00 1
//	linkprobe -device /dev/ttyACM0 write 0x10 01
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pgallienne/stepper-control-system/agent/link"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "serial device")
	baud    = flag.Int("baud", 115200, "baud rate")
	timeout = flag.Duration("timeout", 500*time.Millisecond, "reply timeout")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] read <addr> <len> | write <addr> <hexdata>\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) != 3 {
		usage()
	}

	addr64, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad address %q: %v\n", args[1], err)
		os.Exit(2)
	}
	addr := byte(addr64)

	client, err := link.Open(*device, *baud, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *device, err)
		os.Exit(1)
	}
	defer client.Close()

	switch args[0] {
	case "read":
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 1 {
			fmt.Fprintf(os.Stderr, "bad length %q\n", args[2])
			os.Exit(2)
		}
		data, err := client.ReadRegister(addr, n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read 0x%02X: %v\n", addr, err)
			os.Exit(1)
		}
		fmt.Printf("0x%02X: %s\n", addr, hex.EncodeToString(data))
	case "write":
		data, err := hex.DecodeString(args[2])
		if err != nil || len(data) == 0 {
			fmt.Fprintf(os.Stderr, "bad hex data %q\n", args[2])
			os.Exit(2)
		}
		if err := client.WriteRegister(addr, data); err != nil {
			fmt.Fprintf(os.Stderr, "write 0x%02X: %v\n", addr, err)
			os.Exit(1)
		}
		fmt.Printf("0x%02X: wrote %d byte(s)\n", addr, len(data))
	default:
		usage()
	}
}
