package capture

import "image"

// VideoStreamer источник кадров: вебкамера или видеофайл
type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan image.Image
	ErrorChan() <-chan error
}

// Options размер и частота кадров на выходе ffmpeg
type Options struct {
	FPS    uint
	Width  int
	Height int
}

// DefaultOptions 640x480, 10 кадров в секунду
func DefaultOptions() Options {
	return Options{FPS: 10, Width: 640, Height: 480}
}

func (o Options) frameSize() int {
	return o.Width * o.Height * 4
}

// NewStreamer выбирает источник: видеофайл при isFile, иначе устройство.
func NewStreamer(source string, isFile bool, opts Options) VideoStreamer {
	if isFile {
		return NewFileStreamer(source, opts)
	}
	return NewWebcamStreamer(source, opts)
}
