package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	app "genderage/internal/application"
	"genderage/internal/domain/entity"
	"genderage/internal/infrastructure/capture"
	"genderage/internal/infrastructure/vision"
)

type webcamOptions struct {
	Source  string
	IsFile  bool
	FPS     uint
	Width   int
	Height  int
	Preview bool
	Record  bool
}

var webcamOpts webcamOptions

// Команды с клавиатуры
const (
	keyCapture = 'c'
	keyQuit    = 'q'
	keyEscape  = 27
)

var webcamCmd = &cobra.Command{
	Use:   "webcam",
	Short: "Live detection from a webcam or video file",
	Long: `Reads frames through ffmpeg and runs detection on each one.
Type "c" and Enter to save the current frame into the report, "q" to quit.
With --preview the same keys work in the preview window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContainer(webcamOpts.Record)
		if err != nil {
			return err
		}
		defer c.Close()

		streamer := capture.NewStreamer(webcamOpts.Source, webcamOpts.IsFile, capture.Options{
			FPS:    webcamOpts.FPS,
			Width:  webcamOpts.Width,
			Height: webcamOpts.Height,
		})
		if err := streamer.Start(); err != nil {
			return err
		}
		defer streamer.Stop()

		var preview *vision.Preview
		if webcamOpts.Preview {
			preview, err = vision.NewPreview("genderage")
			if err != nil {
				return err
			}
			defer preview.Close()
		}

		session := &webcamSession{
			detections: c.DetectionService,
			report:     capture.NewReport(cfg.ReportFile, cfg.CaptureDir),
			counter:    capture.NewCounter(),
			record:     webcamOpts.Record,
			out:        cmd.OutOrStdout(),
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		keys := readKeys(ctx, cmd.InOrStdin())

		frames, errs := streamer.FrameChan(), streamer.ErrorChan()

		log.Printf("Streaming from %s, press c to capture, q to quit", webcamOpts.Source)
		defer session.printTotals()

		for {
			select {
			case <-ctx.Done():
				return nil
			case key, ok := <-keys:
				if !ok {
					keys = nil
					continue
				}
				if session.handleKey(ctx, key) {
					return nil
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				return err
			case frame, ok := <-frames:
				if !ok {
					return nil
				}
				if err := session.process(ctx, frame); err != nil {
					log.Printf("Frame error: %v", err)
					continue
				}
				if preview != nil {
					if session.handleKey(ctx, preview.Show(frame, session.lastResult)) {
						return nil
					}
				}
			}
		}
	},
}

func init() {
	defaults := capture.DefaultOptions()
	webcamCmd.Flags().StringVarP(&webcamOpts.Source, "device", "d", "/dev/video0", "Camera device or video file path")
	webcamCmd.Flags().BoolVar(&webcamOpts.IsFile, "file", false, "Treat --device as a video file")
	webcamCmd.Flags().UintVar(&webcamOpts.FPS, "fps", defaults.FPS, "Frames per second to analyse")
	webcamCmd.Flags().IntVar(&webcamOpts.Width, "width", defaults.Width, "Frame width")
	webcamCmd.Flags().IntVar(&webcamOpts.Height, "height", defaults.Height, "Frame height")
	webcamCmd.Flags().BoolVar(&webcamOpts.Preview, "preview", false, "Show a preview window (requires gocv build)")
	webcamCmd.Flags().BoolVar(&webcamOpts.Record, "record", false, "Store captured frames in the history database")
	rootCmd.AddCommand(webcamCmd)
}

// webcamSession состояние живого потока: последний кадр и счётчики.
type webcamSession struct {
	detections *app.DetectionService
	report     *capture.Report
	counter    *capture.Counter
	record     bool
	out        io.Writer

	lastFrame  image.Image
	lastResult *entity.DetectionResult
	lastCount  int
}

func (s *webcamSession) process(ctx context.Context, frame image.Image) error {
	result, err := s.detections.Pipeline().Detect(ctx, frame)
	if err != nil {
		return err
	}
	s.lastFrame = frame
	s.lastResult = result
	if n := len(result.Faces); n != s.lastCount {
		s.lastCount = n
		fmt.Fprintf(s.out, "Faces in frame: %d\n", n)
	}
	return nil
}

// handleKey возвращает true, если пора выходить.
func (s *webcamSession) handleKey(ctx context.Context, key int) bool {
	switch key {
	case keyQuit, keyEscape:
		return true
	case keyCapture:
		if err := s.capture(ctx); err != nil {
			log.Printf("Capture error: %v", err)
		}
	}
	return false
}

func (s *webcamSession) capture(ctx context.Context) error {
	if s.lastFrame == nil || s.lastResult == nil {
		return errors.New("no frame yet")
	}
	if !s.lastResult.HasFaces {
		fmt.Fprintln(s.out, "No faces to capture")
		return nil
	}

	path, err := s.report.Capture(s.lastFrame, s.lastResult)
	if err != nil {
		return err
	}
	s.counter.Add(s.lastResult)

	if s.record {
		if err := s.detections.Record(ctx, "", entity.ChannelWebcam, s.lastResult, ""); err != nil {
			log.Printf("History save error: %v", err)
		}
	}

	fmt.Fprintf(s.out, "Captured %d face(s) to %s\n", len(s.lastResult.Faces), path)
	return nil
}

func (s *webcamSession) printTotals() {
	totals := s.counter.Snapshot()
	if len(totals) == 0 {
		return
	}
	labels := make([]string, 0, len(totals))
	for label := range totals {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s=%d", label, totals[label]))
	}
	fmt.Fprintf(s.out, "Captured totals: %s\n", strings.Join(parts, ", "))
}

// readKeys читает команды построчно, берёт первый символ строки.
// После отмены ctx горутина завершается на следующей строке ввода.
func readKeys(ctx context.Context, r io.Reader) <-chan int {
	keys := make(chan int)
	go func() {
		defer close(keys)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(strings.ToLower(scanner.Text()))
			if line == "" {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			select {
			case keys <- int(line[0]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return keys
}
