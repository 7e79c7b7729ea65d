// Command registry-updater keeps configs/activity-registry.json in step with
// the job workers built into this repository.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	gq "software-quoter/internal/workers/quoting/generate-quote"
	"software-quoter/pkg/registry"
)

func main() {
	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)
	syncPath := syncCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validatePath := validateCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		_ = syncCmd.Parse(os.Args[2:])
		if err := syncRegistry(*syncPath); err != nil {
			fmt.Printf("Error syncing registry: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		_ = validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err == nil {
			err = reg.Validate()
		}
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	default:
		help()
	}
}

func syncRegistry(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	for _, a := range activities() {
		if reg.Upsert(a, time.Now()) {
			fmt.Printf("Updated activity: %s\n", a.ID)
		} else {
			fmt.Printf("Added activity: %s\n", a.ID)
		}
	}
	return registry.SaveRegistry(reg, path)
}

func activities() []registry.Activity {
	return []registry.Activity{
		gq.Activity(gq.DefaultConfig()),
	}
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  sync      Add or refresh the built-in activities
  validate  Validate the registry file

Examples:
  registry-updater sync -path configs/activity-registry.json
  registry-updater validate -path configs/activity-registry.json`)
}
