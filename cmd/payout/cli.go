package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "batch":
		if len(args) >= 3 && args[2] == "build" {
			return runBatchBuild(args[3:])
		}
	case "proof":
		if len(args) >= 3 && args[2] == "verify" {
			return runProofVerify(args[3:])
		}
	case "leaf":
		return runLeafHash(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "payout"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s batch build --claims <claims.json> [--out <batch.json>] [--seed-hex <hex>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s proof verify --beneficiary <0xaddr> --claim-id <n> --amount <n> --root <hex> --proof <proof.json>\n", name)
	fmt.Fprintf(os.Stderr, "  %s leaf --beneficiary <0xaddr> --claim-id <n> --amount <n>\n", name)
}
