package backend

import (
	"context"
	"os"

	"github.com/pavel-fokin/file-converter/internal/command"
	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

// Audio encoder per target container. Every conversion re-encodes.
var audioCodecs = map[format.Format]string{
	format.MP3:  "libmp3lame",
	format.AAC:  "aac",
	format.M4A:  "aac",
	format.OGG:  "libvorbis",
	format.FLAC: "flac",
	format.WAV:  "pcm_s16le",
}

// Media runs ffmpeg. The three registry backends that transcode audio and
// video share it and differ only in how they build arguments.
type Media struct {
	name   string
	bin    string
	runner command.Runner
	args   func(source, target format.Format) []string
}

// NewAudio transcodes audio, or extracts the audio track of a video.
func NewAudio(runner command.Runner, bin string) *Media {
	return &Media{name: registry.Audio, bin: bin, runner: runner, args: audioArgs}
}

// NewVideo transcodes between video containers and renders video to gif.
func NewVideo(runner command.Runner, bin string) *Media {
	return &Media{name: registry.Video, bin: bin, runner: runner, args: videoArgs}
}

// NewGIFToVideo encodes an animated gif as a video.
func NewGIFToVideo(runner command.Runner, bin string) *Media {
	return &Media{name: registry.GIFToVideo, bin: bin, runner: runner, args: gifToVideoArgs}
}

func (m *Media) Name() string { return m.name }

func (m *Media) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	output := outputPath(outputDir, inputPath, target)

	args := []string{"-y", "-loglevel", "error", "-i", inputPath}
	args = append(args, m.args(format.FromFilename(inputPath), target)...)
	args = append(args, output)

	if _, err := m.runner.Run(ctx, m.bin, args...); err != nil {
		os.Remove(output)
		return "", convert.NewBackendError(m.name, err)
	}
	if err := expectOutput(output); err != nil {
		return "", convert.NewBackendError(m.name, err)
	}
	return output, nil
}

func audioArgs(source, target format.Format) []string {
	var args []string
	if format.Video.Has(source) {
		args = append(args, "-vn")
	}
	if codec, ok := audioCodecs[target]; ok {
		args = append(args, "-c:a", codec)
	}
	return args
}

func videoArgs(source, target format.Format) []string {
	switch target {
	case format.GIF:
		return []string{"-vf", "fps=10", "-an"}
	case format.MP4:
		return []string{"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac"}
	}
	return nil
}

func gifToVideoArgs(source, target format.Format) []string {
	if target != format.MP4 {
		return []string{"-an"}
	}
	// libx264 with yuv420p needs even dimensions.
	return []string{
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-movflags", "+faststart",
		"-an",
	}
}
