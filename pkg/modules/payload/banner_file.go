package payload

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/relay"
)

// BannerMatch reports received chunks containing the content of a banner
// file, e.g. a service greeting.
type BannerMatch struct {
	*module.Base

	BannerFile string

	banner  []byte
	matches atomic.Int64
}

// NewBannerMatch is the registry factory.
func NewBannerMatch() module.Entity {
	p := &BannerMatch{}
	p.Base = module.NewPayloadBase(
		module.Info{
			Name:        "banner_file",
			Path:        "payload",
			Author:      "xploit",
			Description: "Reports remote responses containing a known banner",
			Version:     "1.0.0",
		},
		KindInspect,
		module.NewSchema(
			module.File("BannerFile", &p.BannerFile, module.Required(), module.Describe("File holding the banner to look for")),
		),
	)
	return p
}

// OpenFilters loads the banner and returns a receive-side filter.
func (p *BannerMatch) OpenFilters() (relay.Filter, relay.Filter, error) {
	banner, err := os.ReadFile(p.BannerFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read banner file: %w", err)
	}
	banner = bytes.TrimRight(banner, "\r\n")
	if len(banner) == 0 {
		return nil, nil, errors.New("banner file is empty")
	}
	p.banner = banner

	return nil, func(data []byte) {
		if bytes.Contains(data, p.banner) {
			n := p.matches.Add(1)
			p.WriteInfo(fmt.Sprintf("Banner matched (%d)", n))
		}
	}, nil
}

// CloseFilters implements Inspector.
func (p *BannerMatch) CloseFilters() error { return nil }

// Matches returns how many received chunks contained the banner.
func (p *BannerMatch) Matches() int64 { return p.matches.Load() }
