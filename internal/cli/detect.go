package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"genderage/internal/domain/entity"
)

type detectOptions struct {
	InputPath  string
	OutputPath string
	JSON       bool
	Record     bool
}

var detectOpts detectOptions

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect faces in a single image and estimate gender and age",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(detectOpts.InputPath)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}

		c, err := buildContainer(detectOpts.Record)
		if err != nil {
			return err
		}
		defer c.Close()

		svc := c.DetectionService
		result, img, err := svc.Detect(cmd.Context(), data)
		if err != nil {
			return err
		}

		if detectOpts.Record {
			if err := svc.Record(cmd.Context(), "", entity.ChannelCLI, result, ""); err != nil {
				return fmt.Errorf("failed to record history: %w", err)
			}
		}

		if detectOpts.OutputPath != "" && result.HasFaces {
			annotated, err := svc.Annotate(img, result)
			if err != nil {
				return fmt.Errorf("failed to annotate: %w", err)
			}
			if err := os.WriteFile(detectOpts.OutputPath, annotated, 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		if detectOpts.JSON {
			return writeJSON(out, result)
		}
		printResult(out, detectOpts.InputPath, result)
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVarP(&detectOpts.InputPath, "input", "i", "", "Path to the input image (required)")
	detectCmd.Flags().StringVarP(&detectOpts.OutputPath, "output", "o", "", "Where to write the annotated JPEG")
	detectCmd.Flags().BoolVar(&detectOpts.JSON, "json", false, "Print results as JSON")
	detectCmd.Flags().BoolVar(&detectOpts.Record, "record", false, "Store results in the history database")
	detectCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(detectCmd)
}

func printResult(w io.Writer, name string, result *entity.DetectionResult) {
	if !result.HasFaces {
		fmt.Fprintf(w, "%s: no face detected\n", name)
		return
	}
	fmt.Fprintf(w, "%s: %d face(s)\n", name, len(result.Faces))
	for i, f := range result.Faces {
		fmt.Fprintf(w, "  %d. [%d,%d %dx%d] %s (%.2f%%), age %s (%.2f%%), %s\n",
			i+1, f.Box.X, f.Box.Y, f.Box.Width, f.Box.Height,
			f.Gender.Label, f.Gender.Confidence,
			f.Age.Label, f.Age.Confidence,
			f.Source)
	}
}

func writeJSON(w io.Writer, result *entity.DetectionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Width  int                 `json:"width"`
		Height int                 `json:"height"`
		Faces  []entity.FaceRecord `json:"faces"`
	}{result.ImageWidth, result.ImageHeight, result.Records()})
}
