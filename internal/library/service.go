package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/renderdeck/renderdeck-agent/internal/ffmpeg"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

// Service registers and resolves media assets. Registration probes the
// file so downstream validation works against real durations and
// dimensions, not caller claims.
type Service struct {
	repo   Repository
	runner ffmpeg.Runner
	logger *slog.Logger
}

func NewService(repo Repository, runner ffmpeg.Runner, logger *slog.Logger) *Service {
	return &Service{repo: repo, runner: runner, logger: logger}
}

// Register adds a media file to the library. Registering a path that is
// already present returns the existing asset unchanged.
func (s *Service) Register(ctx context.Context, path string) (*Asset, error) {
	existing, err := s.repo.GetAssetByPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("looking up asset: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("media file not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	kind := KindForPath(path)
	if kind == "" {
		return nil, fmt.Errorf("unsupported media type: %s", path)
	}

	asset := &Asset{
		ID:        uuid.NewString(),
		Kind:      kind,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: time.Now().UTC(),
	}

	probe, err := s.runner.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}
	asset.Width, asset.Height = probe.Dimensions()
	if kind != string(timeline.AssetImage) {
		dur, err := probe.Duration()
		if err != nil {
			return nil, fmt.Errorf("probing %s: %w", path, err)
		}
		asset.Duration = dur
	}

	if err := s.repo.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("storing asset: %w", err)
	}

	s.logger.Info("asset registered",
		"asset_id", asset.ID,
		"kind", asset.Kind,
		"duration_s", asset.Duration,
		"size_bytes", asset.Size,
	)
	return asset, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Asset, error) {
	return s.repo.GetAsset(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Asset, error) {
	return s.repo.ListAssets(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteAsset(ctx, id)
}

// Resolve loads the named assets into the snapshot map an export job
// carries. Every ID must resolve; a timeline referencing an unknown
// asset can never render.
func (s *Service) Resolve(ctx context.Context, ids []string) (map[string]timeline.Asset, error) {
	out := make(map[string]timeline.Asset, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		asset, err := s.repo.GetAsset(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading asset %s: %w", id, err)
		}
		if asset == nil {
			return nil, fmt.Errorf("unknown asset %s", id)
		}
		out[id] = asset.TimelineAsset()
	}
	return out, nil
}
