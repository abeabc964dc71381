package preprocessing

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Default input size of the recognition model
const (
	DefaultWidth  = 100
	DefaultHeight = 32
)

// ImageProcessor turns encoded images into normalized single-channel tensors
// of a fixed size. It is safe for concurrent use.
type ImageProcessor struct {
	width  int
	height int

	// reusable resize targets
	grayPool sync.Pool
}

// NewImageProcessor creates a new image processor with the specified output size
func NewImageProcessor(width, height int) *ImageProcessor {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	p := &ImageProcessor{width: width, height: height}
	p.grayPool.New = func() any {
		return image.NewGray(image.Rect(0, 0, p.width, p.height))
	}
	return p
}

// Size returns the output width and height
func (p *ImageProcessor) Size() (width, height int) {
	return p.width, p.height
}

// ProcessedImage represents a preprocessed image ready for neural network input
type ProcessedImage struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// DecodeAndPreprocess decodes a JPEG, PNG, GIF, BMP, TIFF or WebP image, converts it to
// luminance, resizes it bilinearly and normalizes it.
// Returns data in CHW format [1, height, width] with values in [-1, 1].
func (p *ImageProcessor) DecodeAndPreprocess(reader io.Reader) (*ProcessedImage, error) {
	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, &ImageDecodeError{Err: err}
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, &ImageDecodeError{Format: format, Err: fmt.Errorf("empty image")}
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		gray = image.NewGray(bounds)
		draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	}

	resized := p.grayPool.Get().(*image.Gray)
	defer p.grayPool.Put(resized)
	draw.BiLinear.Scale(resized, resized.Rect, gray, bounds, draw.Src, nil)

	data := make([]float32, p.width*p.height)
	for y := 0; y < p.height; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+p.width]
		for x, v := range row {
			data[y*p.width+x] = Normalize(v)
		}
	}

	return &ProcessedImage{
		Data:     data,
		Width:    p.width,
		Height:   p.height,
		Channels: 1,
	}, nil
}

// Normalize maps a pixel intensity from [0, 255] onto [-1, 1]
func Normalize(v uint8) float32 {
	return float32(v)/127.5 - 1.0
}

// LoadFile opens and preprocesses the image at path. Any failure, including a
// missing file, is reported as an *ImageDecodeError.
func (p *ImageProcessor) LoadFile(path string) (*ProcessedImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ImageDecodeError{Path: path, Err: err}
	}
	defer file.Close()

	img, err := p.DecodeAndPreprocess(file)
	if err != nil {
		if decodeErr, ok := err.(*ImageDecodeError); ok {
			decodeErr.Path = path
		}
		return nil, err
	}
	return img, nil
}

// FileLoader loads images from disk. Relative paths are resolved against
// BaseDir when it is set.
type FileLoader struct {
	Processor *ImageProcessor
	BaseDir   string
}

// NewFileLoader creates a loader producing width x height images
func NewFileLoader(width, height int, baseDir string) *FileLoader {
	return &FileLoader{
		Processor: NewImageProcessor(width, height),
		BaseDir:   baseDir,
	}
}

// Resolve returns the on-disk location of path
func (l *FileLoader) Resolve(path string) string {
	if l.BaseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.BaseDir, path)
}

// Load returns the preprocessed image at path
func (l *FileLoader) Load(path string) (*ProcessedImage, error) {
	return l.Processor.LoadFile(l.Resolve(path))
}

// Check decodes the image at path and discards the result
func (l *FileLoader) Check(path string) error {
	_, err := l.Load(path)
	return err
}

// PreprocessBatch preprocesses multiple images concurrently.
// Results are in the order of imagePaths; the first failure aborts the batch.
func PreprocessBatch(ctx context.Context, imagePaths []string, width, height int, maxWorkers int) ([]*ProcessedImage, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	results := make([]*ProcessedImage, len(imagePaths))
	processor := NewImageProcessor(width, height)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, path := range imagePaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := processor.LoadFile(path)
			if err != nil {
				return fmt.Errorf("failed to process image %d: %w", i, err)
			}
			results[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
