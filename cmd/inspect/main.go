// Command inspect extracts build metadata from an APK, AAB, or IPA and
// prints it as JSON or a short human-readable table. It carries no
// parsing logic of its own — every decision lives in the buildinspect
// library — the same split axml2xml kept from avast/apkparser.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tramlinehq/buildinspect"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		format  string
		iconOut string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Inspect an APK, AAB, or IPA and print its build metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				log.SetOutput(io.Discard)
			}

			bi, err := buildinspect.Inspect(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			for _, w := range bi.Warnings {
				log.Printf("warning: %s", w)
			}

			if iconOut != "" && len(bi.IconBytes) > 0 {
				if err := os.WriteFile(iconOut, bi.IconBytes, 0o644); err != nil {
					log.Printf("failed to write icon to %s: %v", iconOut, err)
				}
			}

			switch format {
			case "json":
				return printJSON(bi)
			default:
				printTable(bi)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	cmd.Flags().StringVar(&iconOut, "icon-out", "", "write the extracted launcher icon to this path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log warnings to stderr")

	return cmd
}

func printJSON(bi *buildinspect.BuildInfo) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(bi)
}

func printTable(bi *buildinspect.BuildInfo) {
	bold := color.New(color.Bold)
	label := color.New(color.FgCyan)

	bold.Printf("%s\n", bi.ArchiveName)
	fmt.Printf("  platform:    %s\n", bi.Platform)
	fmt.Printf("  size:        %d bytes\n", bi.ArchiveSize)
	fmt.Printf("  entries:     %d\n", bi.EntryCount)

	if bi.Android != nil {
		a := bi.Android
		label.Println("  android:")
		fmt.Printf("    package:      %s\n", a.Package)
		fmt.Printf("    version:      %s (%s)\n", a.VersionName, a.VersionCode)
		fmt.Printf("    sdk:          min %s, target %s\n", a.MinSdk, a.TargetSdk)
		fmt.Printf("    debuggable:   %t\n", a.Debuggable)
		fmt.Printf("    architectures: %v\n", a.Architectures)
		fmt.Printf("    dex files:    %d\n", a.DexCount)
		if len(a.Modules) > 0 {
			fmt.Printf("    modules:      %v\n", a.Modules)
		}
		fmt.Printf("    signed:       %t\n", a.Signed)
		for _, act := range a.Activities {
			if act.IsLauncher {
				fmt.Printf("    launcher:     %s\n", act.Name)
			}
		}
	}

	if bi.IOS != nil {
		i := bi.IOS
		label.Println("  ios:")
		fmt.Printf("    bundle id:    %s\n", i.BundleID)
		fmt.Printf("    version:      %s (build %s)\n", i.Version, i.BuildNumber)
		fmt.Printf("    min os:       %s\n", i.MinOSVersion)
		fmt.Printf("    families:     %v\n", i.DeviceFamilies)
		if i.Provisioning != nil {
			fmt.Printf("    provisioning: %s (team %s)\n", i.Provisioning.Name, i.Provisioning.TeamName)
		}
	}

	if bi.ManifestError != "" {
		color.New(color.FgRed).Printf("  manifest error: %s\n", bi.ManifestError)
	}
	for _, w := range bi.Warnings {
		color.New(color.FgYellow).Printf("  warning: %s\n", w)
	}
}
