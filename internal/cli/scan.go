package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	app "genderage/internal/application"
	"genderage/internal/domain/entity"
)

type scanOptions struct {
	InputDir   string
	NumEngines int
	CSVPath    string
	Record     bool
}

var scanOpts scanOptions

// imageExts расширения, которые умеет декодер
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

type scanResult struct {
	Path   string
	Result *entity.DetectionResult
	Err    error
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a directory of images in parallel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanOpts.NumEngines < 1 {
			return fmt.Errorf("engines must be at least 1, got %d", scanOpts.NumEngines)
		}

		paths, err := collectImages(scanOpts.InputDir)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No images found")
			return nil
		}

		c, err := buildContainer(scanOpts.Record)
		if err != nil {
			return err
		}
		defer c.Close()

		bar := progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("🔍 Scanning"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		results := scanImages(cmd.Context(), c.DetectionService, paths, scanOpts.NumEngines, func() {
			bar.Add(1)
		})
		bar.Finish()
		fmt.Fprintln(os.Stderr)

		if scanOpts.Record {
			for _, r := range results {
				if r.Err != nil {
					continue
				}
				if err := c.DetectionService.Record(cmd.Context(), "", entity.ChannelCLI, r.Result, ""); err != nil {
					return fmt.Errorf("failed to record history: %w", err)
				}
			}
		}

		if scanOpts.CSVPath != "" {
			f, err := os.Create(scanOpts.CSVPath)
			if err != nil {
				return fmt.Errorf("failed to create csv: %w", err)
			}
			defer f.Close()
			if err := writeScanCSV(f, results); err != nil {
				return err
			}
		}

		printSummary(cmd.OutOrStdout(), results)
		return cmd.Context().Err()
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.InputDir, "input", "i", "", "Directory with images (required)")
	scanCmd.Flags().IntVarP(&scanOpts.NumEngines, "engines", "e", 1, "Number of parallel workers")
	scanCmd.Flags().StringVar(&scanOpts.CSVPath, "csv", "", "Write per-face results to a CSV file")
	scanCmd.Flags().BoolVar(&scanOpts.Record, "record", false, "Store results in the history database")
	scanCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scanCmd)
}

// collectImages рекурсивно собирает пути к картинкам в лексикографическом порядке.
func collectImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if imageExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// scanImages прогоняет файлы через пул воркеров. Порядок результатов совпадает с paths.
func scanImages(ctx context.Context, svc *app.DetectionService, paths []string, workers int, onDone func()) []scanResult {
	type task struct {
		index int
		path  string
	}

	taskChan := make(chan task, workers)
	results := make([]scanResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskChan {
				results[t.index] = scanOne(ctx, svc, t.path)
				if onDone != nil {
					onDone()
				}
			}
		}()
	}

	for i, p := range paths {
		if ctx.Err() != nil {
			results[i] = scanResult{Path: p, Err: ctx.Err()}
			continue
		}
		taskChan <- task{index: i, path: p}
	}
	close(taskChan)
	wg.Wait()

	return results
}

func scanOne(ctx context.Context, svc *app.DetectionService, path string) scanResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return scanResult{Path: path, Err: err}
	}
	result, _, err := svc.Detect(ctx, data)
	return scanResult{Path: path, Result: result, Err: err}
}

func writeScanCSV(w io.Writer, results []scanResult) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"Path", "X", "Y", "W", "H", "Gender", "GenderConfidence", "Age", "AgeConfidence", "Source"})
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			continue
		}
		for _, f := range r.Result.Faces {
			cw.Write([]string{
				r.Path,
				strconv.Itoa(f.Box.X),
				strconv.Itoa(f.Box.Y),
				strconv.Itoa(f.Box.Width),
				strconv.Itoa(f.Box.Height),
				f.Gender.Label,
				strconv.FormatFloat(f.Gender.Confidence, 'f', 2, 64),
				f.Age.Label,
				strconv.FormatFloat(f.Age.Confidence, 'f', 2, 64),
				string(f.Source),
			})
		}
	}
	cw.Flush()
	return cw.Error()
}

func printSummary(w io.Writer, results []scanResult) {
	var images, faces, failed int
	genders := map[string]int{}
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s: %v\n", r.Path, r.Err)
			continue
		}
		images++
		faces += len(r.Result.Faces)
		for label, n := range r.Result.CountByGender() {
			genders[label] += n
		}
	}

	fmt.Fprintf(w, "Images: %d, failed: %d, faces: %d\n", images, failed, faces)
	labels := make([]string, 0, len(genders))
	for label := range genders {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "  %s: %d\n", label, genders[label])
	}
}
