package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"peira/internal/device"
	"peira/internal/paradigm"
	"peira/internal/rig"
)

func runDevices(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("devices", flag.ContinueOnError)
	paradigmName := fs.String("paradigm", "", "restrict listings to one paradigm")
	jsonOut := fs.Bool("json", false, "emit listings as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paradigms := paradigm.List()
	if *paradigmName != "" {
		paradigms = []string{*paradigmName}
	}

	type listing struct {
		Paradigm string   `json:"paradigm"`
		Rigs     []string `json:"rigs"`
		Inputs   []string `json:"inputs"`
		Outputs  []string `json:"outputs"`
	}
	listings := make([]listing, 0, len(paradigms))
	for _, name := range paradigms {
		listings = append(listings, listing{
			Paradigm: name,
			Rigs:     rig.AvailableRigProfiles(name),
			Inputs:   device.ListInputsForParadigm(name),
			Outputs:  device.ListOutputsForParadigm(name),
		})
	}
	if *jsonOut {
		return printJSON(listings)
	}

	for _, l := range listings {
		fmt.Printf("paradigm=%s\n", l.Paradigm)
		fmt.Printf("  rigs:    %s\n", strings.Join(l.Rigs, ", "))
		fmt.Printf("  inputs:  %s\n", strings.Join(l.Inputs, ", "))
		fmt.Printf("  outputs: %s\n", strings.Join(l.Outputs, ", "))
	}
	fmt.Printf("registered inputs=%s\n", strings.Join(device.ListInputs(), ", "))
	fmt.Printf("registered outputs=%s\n", strings.Join(device.ListOutputs(), ", "))
	return nil
}
