package hls

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/grafov/m3u8"

	"github.com/zachfi/radiodl/pkg/resolver"
)

// selectVariant returns the variant whose bandwidth is closest to target.
// On a tie the first one listed wins.
func selectVariant(variants []*m3u8.Variant, target int) *m3u8.Variant {
	var (
		best     *m3u8.Variant
		bestDist = math.MaxFloat64
	)
	for _, v := range variants {
		if v == nil {
			continue
		}
		dist := math.Abs(float64(v.Bandwidth) - float64(target))
		if dist < bestDist {
			best, bestDist = v, dist
		}
	}
	return best
}

// resolveMaster returns the media playlist URL to poll and the chosen
// variant bandwidth in bits per second. A URL that already points at a media
// playlist is returned as is, with a bandwidth of 0.
func (h *Handler) resolveMaster(ctx context.Context, masterURL string) (string, int, error) {
	base, err := url.Parse(masterURL)
	if err != nil {
		return "", 0, &resolver.Error{Kind: resolver.KindPlaylistParse, URL: masterURL, Err: err}
	}

	body, err := h.get(ctx, masterURL)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	p, listType, err := m3u8.DecodeFrom(bufio.NewReader(body), false)
	if err != nil {
		return "", 0, &resolver.Error{Kind: resolver.KindPlaylistParse, URL: masterURL, Err: err}
	}

	if listType == m3u8.MEDIA {
		h.logger.Info("manifest is a media playlist, polling it directly", "url", masterURL)
		return masterURL, 0, nil
	}

	master, ok := p.(*m3u8.MasterPlaylist)
	if !ok {
		return "", 0, &resolver.Error{Kind: resolver.KindPlaylistParse, URL: masterURL, Err: fmt.Errorf("unexpected playlist type %T", p)}
	}

	v := selectVariant(master.Variants, h.cfg.TargetBandwidth)
	if v == nil {
		return "", 0, &resolver.Error{Kind: resolver.KindPlaylistParse, URL: masterURL, Err: fmt.Errorf("master manifest lists no variant")}
	}

	ref, err := base.Parse(v.URI)
	if err != nil {
		return "", 0, &resolver.Error{Kind: resolver.KindPlaylistParse, URL: masterURL, Err: err}
	}

	h.logger.Info("selected variant", "bandwidth", v.Bandwidth, "uri", ref.String(), "variants", len(master.Variants))
	return ref.String(), int(v.Bandwidth), nil
}
