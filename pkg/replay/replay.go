// Package replay reads command scripts: one command per line, blank lines
// and lines starting with "#" or "//" skipped.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/xploit/pkg/console"
)

// maxLineSize bounds a single command line.
const maxLineSize = 1024 * 1024

// Parse returns the commands in r, trimmed, in order.
func Parse(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var cmds []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if IsComment(line) {
			continue
		}
		cmds = append(cmds, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read replay input: %w", err)
	}
	return cmds, nil
}

// IsComment reports whether a trimmed line is skipped.
func IsComment(line string) bool {
	return line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//")
}

// ParseFile parses the replay file at path. A UTF-8 BOM is ignored.
func ParseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	return Parse(br)
}

// Load queues the commands of the file at path on layer, reporting
// progress on the layer's output. It returns the number of queued commands.
func Load(layer *console.Layer, path string) (int, error) {
	layer.SetForeColor(console.ColorGray)
	layer.Write(fmt.Sprintf("Reading file %s ... ", path))

	cmds, err := ParseFile(path)
	if err != nil {
		layer.SetForeColor(console.ColorRed)
		layer.WriteLine("ERROR")
		layer.SetForeColor(console.ColorDefault)
		return 0, err
	}

	layer.AddInput(cmds...)
	layer.SetForeColor(console.ColorGreen)
	layer.WriteLine("OK")
	layer.SetForeColor(console.ColorDefault)

	log.Debug().Str("component", "replay").Str("file", path).Int("commands", len(cmds)).Msg("Replay loaded")
	return len(cmds), nil
}
