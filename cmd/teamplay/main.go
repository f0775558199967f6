package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"teamplay/internal/archive"
	"teamplay/internal/config"
	"teamplay/internal/lock"
	"teamplay/internal/logging"
	"teamplay/internal/manifest"
	"teamplay/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	WorkDir    string
	OutputDir  string
}

func main() {
	root := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "teamplay",
		Short: "Parse and package teamplay manifests",
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")
	rootCmd.PersistentFlags().StringVar(&root.WorkDir, "workdir", "", "Directory holding the manifest's data files")
	rootCmd.PersistentFlags().StringVar(&root.OutputDir, "output-dir", "", "Directory archives are written to")

	rootCmd.AddCommand(newPrintPerformerCmd(root))
	rootCmd.AddCommand(newPrintInfoCmd(root))
	rootCmd.AddCommand(newPackageCmd(root))
	rootCmd.AddCommand(newExtractCmd(root))
	rootCmd.AddCommand(newValidateCmd(root))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newPrintPerformerCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "printPerformer [manifest|archive]",
		Short: "Print the performer a manifest is addressed to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pkgr, err := setup(root)
			if err != nil {
				return err
			}
			m, err := pkgr.ReadManifest(sourceArg(args))
			if err != nil {
				return err
			}
			fmt.Println(m.Performer)
			return nil
		},
	}
}

func newPrintInfoCmd(root *rootFlags) *cobra.Command {
	var asJSON bool
	var asFHIR bool

	cmd := &cobra.Command{
		Use:   "printInfo [manifest|archive]",
		Short: "Print a summary of a manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asFHIR {
				return fmt.Errorf("--json and --fhir are mutually exclusive")
			}
			_, pkgr, err := setup(root)
			if err != nil {
				return err
			}
			m, err := pkgr.ReadManifest(sourceArg(args))
			if err != nil {
				return err
			}
			switch {
			case asJSON:
				text, err := m.ToText()
				if err != nil {
					return err
				}
				fmt.Println(text)
			case asFHIR:
				doc, err := m.FHIRTask()
				if err != nil {
					return err
				}
				fmt.Println(string(doc))
			default:
				fmt.Print(renderInfo(m))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the canonical JSON form")
	cmd.Flags().BoolVar(&asFHIR, "fhir", false, "Print the HL7 FHIR Task form")
	return cmd
}

func newPackageCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "package [manifest]",
		Short: "Package a manifest and its files into an archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := sourceArg(args)
			if strings.HasSuffix(strings.ToLower(source), ".zip") {
				return fmt.Errorf("refusing to package from inside an archive; extract the manifest first")
			}
			cfg, pkgr, err := setup(root)
			if err != nil {
				return err
			}
			guard, err := lock.Acquire(cfg.Global.LockFile)
			if err != nil {
				return err
			}
			defer guard.Release()

			m, err := manifest.FromFile(source)
			if err != nil {
				return err
			}
			res, err := pkgr.Package(m)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", filepath.Base(res.Path))
			for _, entry := range res.Entries {
				fmt.Printf("Added %s\n", entry)
			}
			return nil
		},
	}
}

func newExtractCmd(root *rootFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "extract [manifest|archive]",
		Short: "Write the canonical MANIFEST.json from a manifest or archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pkgr, err := setup(root)
			if err != nil {
				return err
			}
			guard, err := lock.Acquire(cfg.Global.LockFile)
			if err != nil {
				return err
			}
			defer guard.Release()

			if _, err := pkgr.Extract(sourceArg(args), force || cfg.Extract.Force); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", manifest.Filename)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing MANIFEST.json")
	return cmd
}

func newValidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest|archive]",
		Short: "Parse a manifest and report whether it is valid",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pkgr, err := setup(root)
			if err != nil {
				return err
			}
			source := sourceArg(args)
			m, err := pkgr.ReadManifest(source)
			if err != nil {
				return err
			}
			fmt.Printf("%s: valid (%s, %d files)\n", source, m.Status, len(m.ActiveFiles()))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("teamplay %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func setup(root *rootFlags) (*config.Config, *archive.Packager, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	applyOverrides(cfg, root)
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	pkgr := archive.New(cfg.Package.WorkDir, cfg.Package.OutputDir, logger)
	return cfg, pkgr, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}
	if root.WorkDir != "" {
		cfg.Package.WorkDir = root.WorkDir
	}
	if root.OutputDir != "" {
		cfg.Package.OutputDir = root.OutputDir
	}
}

func sourceArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return manifest.Filename
}
