// Package ffmpeg transcodes the robot camera into an RTP stream for WebRTC viewers.
package ffmpeg

import (
	"fmt"
	"strconv"
)

// Options describes ffmpeg runtime parameters.
type Options struct {
	FFmpegPath  string
	FPS         int
	BitrateKbps int
}

// BuildCameraArgs returns ffmpeg args that read cameraURL and send H264 RTP to the local port.
// forceMJPEG pins the input demuxer; without it ffmpeg detects the format itself.
func BuildCameraArgs(cameraURL string, opts Options, port int, forceMJPEG bool) []string {
	input := buildInputArgs(cameraURL, forceMJPEG)
	output := buildOutputArgs(opts, port)
	return append(input, output...)
}

// buildInputArgs builds the camera-side arguments.
func buildInputArgs(cameraURL string, forceMJPEG bool) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
	}
	if forceMJPEG {
		args = append(args, "-f", "mjpeg")
	}
	return append(args, "-i", cameraURL)
}

// buildOutputArgs builds the encode/output arguments.
func buildOutputArgs(opts Options, port int) []string {
	// Frequent keyframes let a viewer that joins late start decoding quickly.
	keyint := opts.FPS
	if keyint < 10 {
		keyint = 10
	}
	return []string{
		"-an",
		"-r", strconv.Itoa(opts.FPS),
		"-vcodec", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-profile:v", "baseline",
		"-g", strconv.Itoa(keyint),
		"-keyint_min", strconv.Itoa(keyint),
		"-bf", "0",
		"-x264-params", "scenecut=0:repeat-headers=1",
		"-pix_fmt", "yuv420p",
		"-b:v", fmt.Sprintf("%dk", opts.BitrateKbps),
		"-payload_type", "96",
		"-f", "rtp",
		fmt.Sprintf("rtp://127.0.0.1:%d?pkt_size=1200", port),
	}
}
