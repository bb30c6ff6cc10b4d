package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/supabase"
)

var uploadFile string

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload scraped records to Supabase",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("upload"); err != nil {
			return err
		}

		data, err := os.ReadFile(uploadFile)
		if err != nil {
			return eris.Wrapf(err, "read records file %s", uploadFile)
		}

		var records []model.OutputRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return eris.Wrap(err, "parse records file")
		}
		if len(records) == 0 {
			zap.L().Info("no records to upload")
			return nil
		}

		client := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key)

		uploaded := 0
		for _, r := range records {
			if err := client.Insert(ctx, cfg.Supabase.Table, r.ToContractor()); err != nil {
				zap.L().Warn("record upload failed",
					zap.String("url", r.SourceURL),
					zap.Error(err),
				)
				continue
			}
			uploaded++
		}

		zap.L().Info("upload complete",
			zap.Int("uploaded", uploaded),
			zap.Int("failed", len(records)-uploaded),
		)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFile, "file", "contractors.json", "records JSON file to upload")
	rootCmd.AddCommand(uploadCmd)
}
