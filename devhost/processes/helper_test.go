package processes

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"testing"
	"time"
)

const helperEnv = "XCM_DEV_TEST_HELPER"

// helperCommand re-executes the test binary as a served process running mode.
func helperCommand(mode string, args ...string) ServerCommand {
	return ServerCommand{
		Binary: os.Args[0],
		Args:   append([]string{"-test.run=^TestHelperProcess$", "--", mode}, args...),
		Env:    []string{helperEnv + "=1"},
	}
}

// TestHelperProcess is not a real test. It is the served process for the tests above.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "helper: missing mode")
		os.Exit(2)
	}
	mode, args := args[1], args[2:]

	switch mode {
	case "echo":
		// echo <stdout line>... ; writes one stderr line and exits 0
		for _, a := range args {
			fmt.Println(a)
		}
		fmt.Fprintln(os.Stderr, "warning line")
		os.Exit(0)
	case "exit":
		code, _ := strconv.Atoi(args[0])
		fmt.Println("exiting", code)
		os.Exit(code)
	case "listen":
		// listen <addr> ; serves until interrupted
		ln, err := net.Listen("tcp", args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "listen:", err)
			os.Exit(3)
		}
		defer ln.Close()
		fmt.Println("Ready")
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		select {
		case <-sig:
			fmt.Println("shutting down")
			os.Exit(0)
		case <-time.After(30 * time.Second):
			os.Exit(4)
		}
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Println(wd)
		os.Exit(0)
	case "sleep":
		// ignores interrupts so only a kill ends it
		signal.Ignore(os.Interrupt)
		time.Sleep(30 * time.Second)
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, "helper: unknown mode", mode)
	os.Exit(2)
}
