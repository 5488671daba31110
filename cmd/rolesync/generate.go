package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rolesync/pkg/logger"
	"rolesync/pkg/manifest"
	"rolesync/pkg/storage"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Rebuild role.json from the local character data and portraits",
	Long: `Regenerate the manifest from the character data file and the portraits
currently on disk, without contacting any remote service.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().String("image-dir", "", "portrait directory")
	generateCmd.Flags().String("metadata-file", "", "character data file")
	generateCmd.Flags().String("manifest-file", "", "output manifest")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	images, err := storage.NewManager(cfg.Paths.ImageDir)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	g := manifest.NewGenerator(cfg.Paths.MetadataFile, images, cfg.Paths.ImageURLPrefix, logger.GetLogger())
	m, err := g.Generate(cfg.Paths.ManifestFile)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("manifest generation failed: %w", err)}
	}

	withImage := 0
	for _, e := range m.Data {
		if e.URL != nil {
			withImage++
		}
	}
	p := newPrinter(cmd)
	p.Info("Manifest", cfg.Paths.ManifestFile)
	p.Success(fmt.Sprintf("%d characters, %d with portraits", len(m.Data), withImage))
	return nil
}
