package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoInfo is the container metadata an import needs from a video
// file.
type VideoInfo struct {
	DurationS  float64
	FPS        float64
	FrameCount int64
}

// Valid reports whether the metadata is usable for synthesising frame
// timestamps. Encoders interrupted mid-recording leave zero or absent
// counts behind.
func (v *VideoInfo) Valid() bool {
	return v.DurationS > 0 && v.FPS > 0 && v.FrameCount > 0
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		NbReadFrames string `json:"nb_read_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeVideo reads container metadata without decoding the stream.
func ProbeVideo(ctx context.Context, path string) (*VideoInfo, error) {
	return runFFprobe(ctx, path, false)
}

// CountFrames decodes the whole stream to count its frames. Slow, used
// only when the container metadata is unusable.
func CountFrames(ctx context.Context, path string) (*VideoInfo, error) {
	return runFFprobe(ctx, path, true)
}

func runFFprobe(ctx context.Context, path string, countFrames bool) (*VideoInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
	}
	if countFrames {
		args = append(args, "-count_frames")
	}
	args = append(args, path)

	out, err := exec.CommandContext(ctx, "ffprobe", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("running ffprobe: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no video stream in %s", path)
	}

	stream := probe.Streams[0]
	info := &VideoInfo{}

	if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
		info.DurationS = d
	} else if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.DurationS = d
	}

	info.FPS = parseFrameRate(stream.RFrameRate)

	frames := stream.NbFrames
	if countFrames && stream.NbReadFrames != "" {
		frames = stream.NbReadFrames
	}
	if n, err := strconv.ParseInt(frames, 10, 64); err == nil {
		info.FrameCount = n
	}

	return info, nil
}

// parseFrameRate evaluates ffprobe's fractional rate, e.g. 30000/1001.
func parseFrameRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		f, _ := strconv.ParseFloat(rate, 64)
		return f
	}

	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
