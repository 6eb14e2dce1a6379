package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/darwin/pkg/genome"
)

func newGenomeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genome",
		Short: "Import and export genome versions",
	}
	cmd.AddCommand(newGenomeImportCmd(a), newGenomeExportCmd(a))
	return cmd
}

func newGenomeImportCmd(a *app) *cobra.Command {
	var (
		pk       string
		activate bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Write a genome version from a JSON or YAML file",
		Long: `Import reads one genome version from a JSON or YAML file ("-" reads
stdin) and writes it to the gene pool. A missing sort key is minted from
the current time and a missing version hash is computed from the brain.

With --activate the version is marked ACTIVE and CURRENT is moved to it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := readVersion(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if pk != "" {
				v.Partition = pk
			}
			if v.Partition == "" {
				return genome.NewValidationError("pk", "partition key is required")
			}

			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			if v.SortKey == "" {
				v.SortKey = genome.VersionKey(eng.Pool.Now())
			}
			if v.Metadata.VersionHash == "" && v.Brain != nil {
				if v.Metadata.VersionHash, err = genome.ContentHash(v.Brain); err != nil {
					return err
				}
			}
			if activate {
				v.Metadata.DeploymentState = genome.StateActive
			}
			if v.Metadata.DeploymentState == "" {
				v.Metadata.DeploymentState = genome.StateDraft
			}
			if v.Metadata.DeploymentState == genome.StateActive {
				if err := genome.ValidateVersion(v); err != nil {
					return err
				}
			}
			if err := eng.Pool.PutVersion(cmd.Context(), v); err != nil {
				return err
			}
			if activate {
				if _, err := eng.Pool.SetPointer(cmd.Context(), v.Partition, v.SortKey, "import"); err != nil {
					return err
				}
			}
			return a.print(cmd, map[string]any{
				"pk":           v.Partition,
				"sk":           v.SortKey,
				"version_hash": v.Metadata.VersionHash,
				"activated":    activate,
			})
		},
	}
	cmd.Flags().StringVar(&pk, "pk", "", "lineage partition key (overrides the file)")
	cmd.Flags().BoolVar(&activate, "activate", false, "mark the version ACTIVE and point CURRENT at it")
	return cmd
}

func newGenomeExportCmd(a *app) *cobra.Command {
	var pk, sk string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a genome version",
		Long:  `Export prints a genome version, by default the one CURRENT points at.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			var v *genome.Version
			if sk == "" {
				v, err = eng.Pool.ResolveActive(cmd.Context(), pk)
			} else {
				v, err = eng.Pool.GetVersion(cmd.Context(), pk, sk)
			}
			if err != nil {
				return err
			}
			return a.print(cmd, v)
		},
	}
	cmd.Flags().StringVar(&pk, "pk", "", "lineage partition key (required)")
	cmd.Flags().StringVar(&sk, "sk", "", "version sort key (default: CURRENT)")
	_ = cmd.MarkFlagRequired("pk")
	return cmd
}

// readVersion decodes a version from path. YAML input is converted to JSON
// first so the JSON field names apply to both formats.
func readVersion(stdin io.Reader, path string) (*genome.Version, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read genome: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" || (path == "-" && !json.Valid(data)) {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, genome.NewValidationError("genome", fmt.Sprintf("invalid YAML: %v", err))
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, genome.NewValidationError("genome", fmt.Sprintf("YAML is not representable as JSON: %v", err))
		}
	}

	var v genome.Version
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, genome.NewValidationError("genome", fmt.Sprintf("invalid JSON: %v", err))
	}
	return &v, nil
}
