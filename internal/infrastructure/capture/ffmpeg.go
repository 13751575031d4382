package capture

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"runtime"
	"sync"
)

// FFmpegStreamer читает сырые RGBA-кадры из stdout ffmpeg.
type FFmpegStreamer struct {
	stopOnce sync.Once

	input []string
	opts  Options

	cmd       *exec.Cmd
	stderr    bytes.Buffer
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

// NewWebcamStreamer захват с устройства (/dev/video0, имя dshow, индекс avfoundation)
func NewWebcamStreamer(device string, opts Options) *FFmpegStreamer {
	return newFFmpegStreamer(webcamInput(runtime.GOOS, device), opts)
}

// NewFileStreamer чтение видеофайла
func NewFileStreamer(path string, opts Options) *FFmpegStreamer {
	return newFFmpegStreamer([]string{"-i", path}, opts)
}

func newFFmpegStreamer(input []string, opts Options) *FFmpegStreamer {
	if opts.FPS == 0 || opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultOptions()
	}
	return &FFmpegStreamer{
		input:     input,
		opts:      opts,
		frameChan: make(chan image.Image, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func webcamInput(goos, device string) []string {
	switch goos {
	case "windows":
		return []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", device)}
	case "darwin":
		return []string{"-f", "avfoundation", "-i", device}
	default:
		return []string{"-f", "v4l2", "-i", device}
	}
}

// Args полная командная строка ffmpeg
func (s *FFmpegStreamer) Args() []string {
	args := append([]string{"-loglevel", "error"}, s.input...)
	return append(args,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", s.opts.FPS, s.opts.Width, s.opts.Height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

func (s *FFmpegStreamer) Start() error {
	s.cmd = exec.Command("ffmpeg", s.Args()...)
	s.cmd.Stderr = &s.stderr

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w. Details: %s", err, s.stderr.String())
	}

	go s.readLoop(stdout)
	return nil
}

func (s *FFmpegStreamer) readLoop(stdout io.ReadCloser) {
	defer close(s.frameChan)
	defer close(s.errChan)
	defer stdout.Close()
	defer s.stopCmd()

	buffer := make([]byte, s.opts.frameSize())
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		if _, err := io.ReadFull(stdout, buffer); err != nil {
			select {
			case <-s.stopChan:
			default:
				if err == io.EOF {
					return
				}
				s.errChan <- fmt.Errorf("read error: %v", err)
			}
			return
		}

		img := frameFromRGBA(buffer, s.opts.Width, s.opts.Height)
		// Медленный потребитель получает только свежие кадры.
		select {
		case s.frameChan <- img:
		default:
		}
	}
}

func (s *FFmpegStreamer) stopCmd() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
}

func (s *FFmpegStreamer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.stopCmd()
	})
}

func (s *FFmpegStreamer) FrameChan() <-chan image.Image { return s.frameChan }
func (s *FFmpegStreamer) ErrorChan() <-chan error       { return s.errChan }

// frameFromRGBA копирует буфер: он переиспользуется для следующего кадра.
func frameFromRGBA(buffer []byte, width, height int) *image.RGBA {
	pix := make([]byte, len(buffer))
	copy(pix, buffer)
	return &image.RGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
}
