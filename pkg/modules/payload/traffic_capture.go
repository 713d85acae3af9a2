package payload

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/relay"
)

// TrafficCapture appends relayed bytes to one file per direction.
type TrafficCapture struct {
	*module.Base

	OutputDir string
	Prefix    string
	Hexdump   bool

	mu    sync.Mutex
	files []io.WriteCloser
}

// NewTrafficCapture is the registry factory.
func NewTrafficCapture() module.Entity {
	p := &TrafficCapture{}
	p.Base = module.NewPayloadBase(
		module.Info{
			Name:        "traffic_capture",
			Path:        "payload",
			Author:      "xploit",
			Description: "Writes relayed traffic to per-direction capture files",
			Version:     "1.0.0",
		},
		KindInspect,
		module.NewSchema(
			module.Directory("OutputDir", &p.OutputDir, module.Required(), module.Describe("Directory receiving the capture files")),
			module.String("Prefix", &p.Prefix, module.Describe("File name prefix")),
			module.Bool("Hexdump", &p.Hexdump, module.Describe("Write hex dumps instead of raw bytes")),
		),
	)
	return p
}

// OpenFilters creates the capture files and returns filters writing to them.
func (p *TrafficCapture) OpenFilters() (relay.Filter, relay.Filter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.files) > 0 {
		return nil, nil, errors.New("capture already open")
	}

	ext := ".bin"
	if p.Hexdump {
		ext = ".hex"
	}
	stem := p.Prefix + time.Now().Format("20060102-150405")
	files, names, err := createCaptureFiles(p.OutputDir, stem, ext)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture file: %w", err)
	}

	var filters [2]relay.Filter
	for i, f := range files {
		var w io.WriteCloser = f
		if p.Hexdump {
			w = &hexFile{dumper: hex.Dumper(f), file: f}
		}
		p.files = append(p.files, w)
		filters[i] = p.writer(w, names[i])
	}

	p.WriteInfo(fmt.Sprintf("Capturing traffic to %s", p.OutputDir))
	return filters[0], filters[1], nil
}

// maxCaptureAttempts bounds the numeric suffixes tried for one stem.
const maxCaptureAttempts = 100

// createCaptureFiles exclusively creates the send and receive files for
// stem. A stem already taken, for instance by a second capture started in
// the same second, gets a ".N" suffix.
func createCaptureFiles(dir, stem, ext string) ([2]*os.File, [2]string, error) {
	for n := range maxCaptureAttempts {
		name := stem
		if n > 0 {
			name = fmt.Sprintf("%s.%d", stem, n)
		}
		files, names, err := createCapturePair(dir, name, ext)
		if !errors.Is(err, fs.ErrExist) {
			return files, names, err
		}
	}
	return [2]*os.File{}, [2]string{}, fmt.Errorf("%w: %s", fs.ErrExist, filepath.Join(dir, stem))
}

func createCapturePair(dir, stem, ext string) ([2]*os.File, [2]string, error) {
	var (
		files [2]*os.File
		names [2]string
	)
	for i, d := range []relay.Direction{relay.Send, relay.Receive} {
		names[i] = filepath.Join(dir, fmt.Sprintf("%s-%s%s", stem, d, ext))
		f, err := os.OpenFile(names[i], os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err != nil {
			for j := range i {
				files[j].Close()
				os.Remove(names[j])
			}
			return [2]*os.File{}, [2]string{}, err
		}
		files[i] = f
	}
	return files, names, nil
}

func (p *TrafficCapture) writer(w io.Writer, name string) relay.Filter {
	var mu sync.Mutex
	return func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		if _, err := w.Write(data); err != nil {
			log.Debug().Err(err).Str("component", "module").Str("file", name).Msg("Capture write failed")
		}
	}
}

// CloseFilters flushes and closes the capture files.
func (p *TrafficCapture) CloseFilters() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *TrafficCapture) closeLocked() error {
	var errs []error
	for _, f := range p.files {
		errs = append(errs, f.Close())
	}
	p.files = nil
	return errors.Join(errs...)
}

// hexFile closes the dumper (flushing the last line) before the file.
type hexFile struct {
	dumper io.WriteCloser
	file   *os.File
}

func (h *hexFile) Write(b []byte) (int, error) { return h.dumper.Write(b) }

func (h *hexFile) Close() error {
	return errors.Join(h.dumper.Close(), h.file.Close())
}
