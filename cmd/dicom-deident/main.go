package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"dicom-deident/internal/cli"
)

func usage() {
	fmt.Fprintln(os.Stderr, `dicom-deident - de-identify DICOM trees

USAGE:
  dicom-deident [flags] <source-dir> <dest-dir>

Discovers DICOM datasets anywhere under <source-dir>, groups them by
study and series, de-identifies them per the basic confidentiality
profile, and writes the results under <dest-dir> as
study-<hash>/series-<hash>/NNNN.dcm. Identifier remapping is consistent
within one run: files that shared a UID before still share one after.

FLAGS:`)
	pflag.PrintDefaults()
}

func main() {
	listOnly := pflag.Bool("list-only", false, "print the copy plan without writing anything")
	salt := pflag.StringP("salt", "s", "", "UID derivation salt (default: random per run)")
	workers := pflag.IntP("workers", "w", 0, "series processed concurrently (default 1)")
	configFile := pflag.StringP("config", "c", "", "YAML config file")
	logFile := pflag.String("log-file", "", "append per-file failures to this file")
	help := pflag.BoolP("help", "h", false, "show this help")

	pflag.Usage = usage
	pflag.Parse()

	if *help {
		usage()
		return
	}

	args := pflag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}

	opts := cli.Options{
		Source:     args[0],
		Dest:       args[1],
		ListOnly:   *listOnly,
		Salt:       *salt,
		Workers:    *workers,
		ConfigFile: *configFile,
		LogFile:    *logFile,
	}

	if err := cli.Run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
