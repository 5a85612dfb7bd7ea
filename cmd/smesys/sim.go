package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"smesys/internal/output"
	"smesys/internal/sim"
)

func cmdSim(args []string) error {
	fs := flag.NewFlagSet("sim", flag.ExitOnError)
	common := addCommon(fs)
	a := fs.String("a", "", "kfcm.json of the first application")
	b := fs.String("b", "", "kfcm.json of the second application")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *a == "" || *b == "" {
		return fmt.Errorf("--a and --b are required")
	}

	_, log, err := common.load()
	if err != nil {
		return err
	}
	alpha, err := output.ReadKFCM(*a)
	if err != nil {
		return err
	}
	beta, err := output.ReadKFCM(*b)
	if err != nil {
		return err
	}

	res, err := sim.NewComparator(log).Compare(alpha.Hashed, beta.Hashed)
	if err != nil && !errors.Is(err, sim.ErrComparison) {
		return err
	}
	if res.CommKey == nil {
		res.CommKey = []string{}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(res); encErr != nil {
		return encErr
	}
	return err
}
