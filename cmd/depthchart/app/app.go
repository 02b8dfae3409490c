package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/hidrolab/rovsurvey/internal/store"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	s := store.New(config.DBPath)
	defer s.Close()

	m, err := s.Mission(ctx, config.MissionID)
	if err != nil {
		return fmt.Errorf("mission %d: %w", config.MissionID, err)
	}

	samples, err := s.NavSamples(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("loading nav samples: %w", err)
	}

	profile := NewDepthProfile(m, samples)
	if profile.Empty() {
		return fmt.Errorf("mission %d has no depth samples", m.ID)
	}

	logger.Info("rendering depth profile",
		slog.Int64("mission", m.ID),
		slog.Int("samples", profile.Len()),
		slog.Float64("minDepth", profile.MinDepth),
		slog.Float64("maxDepth", profile.MaxDepth))

	renderer, err := NewRenderer(config)
	if err != nil {
		return err
	}

	img, err := renderer.Render(profile)
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	f, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	switch config.Format {
	case ImageJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	logger.Info("chart written", slog.String("file", config.OutputFile))
	return nil
}
