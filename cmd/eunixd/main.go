// Command eunixd boots an eunix kernel from a machine schema and runs a
// command loop over it: each line of stdin (or a script file) is tokenized
// and dispatched through the kernel's binary lookup, exactly like a shell
// would, except the shell itself is out of scope (spec.md §1).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang/glog"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/nativerv/eunix/internal/binaries"
	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/kernel"
	"github.com/nativerv/eunix/pkg/machine"
)

func init() {
	if glog.V(0) {
		if err := flag.CommandLine.Set("logtostderr", "true"); err != nil {
			log.Printf("failed changing glog default destination, err: %s", err)
		}
	}
}

var (
	machinePath string
	rootSource  string
	scriptPath  string
)

var rootCmd = &cobra.Command{
	Use:   "eunixd",
	Short: "eunix kernel daemon",
	Long:  "eunixd boots an eunix kernel from a machine schema and runs commands against it.",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&machinePath, "machine", "machine.yaml", "path to the machine schema")
	rootCmd.Flags().StringVar(&rootSource, "root", "/dev/sdA", "devfs path of the device backing the e5fs root")
	rootCmd.Flags().StringVar(&scriptPath, "script", "", "run commands from this file instead of stdin")
}

func boot() (*kernel.Kernel, error) {
	m, err := machine.Load(machinePath)
	if err != nil {
		return nil, err
	}
	k := kernel.New(m.Devices, binaries.All, nil)

	if err := k.Mount("", "/dev", "devfs"); err != nil {
		return nil, err
	}
	if err := k.Mount("", "/bin", "binfs"); err != nil {
		return nil, err
	}
	if err := k.Mount(rootSource, "/", "e5fs"); err != nil {
		return nil, err
	}
	if err := k.UpdateUIDGIDMaps(); err != nil {
		glog.Warningf("could not load /etc/passwd or /etc/group: %s", err)
	}
	return k, nil
}

func run(cmd *cobra.Command, args []string) error {
	k, err := boot()
	if err != nil {
		return err
	}

	input := os.Stdin
	if scriptPath != "" {
		f, err := os.Open(scriptPath)
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	parser := shellwords.NewParser()
	scanner := bufio.NewScanner(input)
	exitCode := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		argv, err := parser.Parse(line)
		if err != nil {
			glog.Errorf("parse %q: %s", line, err)
			continue
		}
		if len(argv) == 0 {
			continue
		}
		code, err := k.Run(argv)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			exitCode = 1
			if fserr.Is(err, fserr.ENOENT) {
				exitCode = 127
			}
			continue
		}
		if code != 0 {
			exitCode = code
		}
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return scanner.Err()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
