package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "extract":
		err = cmdExtract(os.Args[2:])
	case "batch":
		err = cmdBatch(os.Args[2:])
	case "sim":
		err = cmdSim(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "image":
		err = cmdImage(os.Args[2:])
	case "native":
		err = cmdNative(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `smesys: Android application similarity by key function call matrices

Usage:
  smesys extract --apk <path> --out <dir>        Decode one APK and write kfcm.json, features.json, image.png
  smesys batch   --dir <dir> --out <dir>         Extract every *.apk in a directory concurrently
  smesys sim     --a <kfcm.json> --b <kfcm.json> Compare two applications, print {level, commkey}
  smesys graph   --smali <dir> --out <dir>       Write callgraph.dot and kfcm.dot for a decoded tree
  smesys image   --smali <dir> --out <dir>       Write image.png for a decoded tree
  smesys native  --lib <path> --out <dir>        Disassemble an arm64 .so: records, call graph, CFG

Flags:
  --config <path>    YAML or TOML configuration (default smesys.yaml)
  --strict           Fail on first smali parse error
  --graphs           Also write DOT graphs (extract, batch)
`)
}
