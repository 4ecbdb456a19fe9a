package ffmpeg_test

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/safestream/moderator/pkg/ffmpeg"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls  []call
	output []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	return f.output, f.err
}

var _ = Describe("ffmpeg tool", func() {
	var runner *fakeRunner

	BeforeEach(func() {
		runner = &fakeRunner{}
	})

	Context("probe", func() {
		It("reads the container duration and stream kinds", func() {
			runner.output = []byte(`{"streams":[{"codec_type":"video"},{"codec_type":"audio"}],"format":{"duration":"12.480000"}}`)
			tool := ffmpeg.New(ffmpeg.WithRunner(runner), ffmpeg.WithBinaries("/opt/ffmpeg", "/opt/ffprobe"))

			md, err := tool.Probe(context.TODO(), "/tmp/video.mp4")
			Expect(err).To(BeNil())
			Expect(md.Duration).To(BeNumerically("~", 12.48))
			Expect(md.HasVideo).To(BeTrue())
			Expect(md.HasAudio).To(BeTrue())

			Expect(runner.calls).To(HaveLen(1))
			Expect(runner.calls[0].name).To(Equal("/opt/ffprobe"))
			Expect(runner.calls[0].args).To(ContainElement("/tmp/video.mp4"))
		})

		It("fails without a duration", func() {
			runner.output = []byte(`{"streams":[],"format":{"duration":"N/A"}}`)
			_, err := ffmpeg.New(ffmpeg.WithRunner(runner)).Probe(context.TODO(), "/tmp/video.mp4")
			Expect(err).To(MatchError(ffmpeg.ErrNoDuration))
		})

		It("fails on undecodable output", func() {
			runner.output = []byte(`not json`)
			_, err := ffmpeg.New(ffmpeg.WithRunner(runner)).Probe(context.TODO(), "/tmp/video.mp4")
			Expect(err).ToNot(BeNil())
		})

		It("surfaces runner errors", func() {
			runner.err = errors.New("ffprobe failed: exit status 1")
			_, err := ffmpeg.New(ffmpeg.WithRunner(runner)).Probe(context.TODO(), "/tmp/video.mp4")
			Expect(err).To(MatchError(ContainSubstring("exit status 1")))
		})
	})

	Context("extraction", func() {
		It("extracts audio as mp3 without video", func() {
			Expect(ffmpeg.New(ffmpeg.WithRunner(runner)).ExtractAudio(context.TODO(), "in.mp4", "out.mp3")).To(Succeed())
			args := strings.Join(runner.calls[0].args, " ")
			Expect(args).To(ContainSubstring("-vn"))
			Expect(args).To(ContainSubstring("-acodec libmp3lame"))
			Expect(runner.calls[0].args[len(runner.calls[0].args)-1]).To(Equal("out.mp3"))
		})

		It("selects scene changes and downsizes frames", func() {
			Expect(ffmpeg.New(ffmpeg.WithRunner(runner)).ExtractSceneFrames(context.TODO(), "in.mp4", "/tmp/frames", 0.15, 320)).To(Succeed())
			args := strings.Join(runner.calls[0].args, " ")
			Expect(args).To(ContainSubstring("select='gt(scene,0.15)',scale=320:-1"))
			Expect(args).To(ContainSubstring("-vsync vfr"))
			Expect(args).To(HaveSuffix("/tmp/frames/frame-%d.png"))
		})

		It("takes a single snapshot", func() {
			Expect(ffmpeg.New(ffmpeg.WithRunner(runner)).Snapshot(context.TODO(), "in.mp4", "/tmp/frames/fallback.png", 320)).To(Succeed())
			args := strings.Join(runner.calls[0].args, " ")
			Expect(args).To(ContainSubstring("-frames:v 1"))
			Expect(args).To(HaveSuffix("/tmp/frames/fallback.png"))
		})
	})
})

var _ = Describe("exec runner", func() {
	BeforeEach(func() {
		if _, err := exec.LookPath("sh"); err != nil {
			Skip("sh not available")
		}
	})

	It("returns stdout", func() {
		out, err := ffmpeg.ExecRunner{}.Run(context.TODO(), "sh", "-c", "echo hello")
		Expect(err).To(BeNil())
		Expect(strings.TrimSpace(string(out))).To(Equal("hello"))
	})

	It("reports stderr on failure", func() {
		_, err := ffmpeg.ExecRunner{}.Run(context.TODO(), "sh", "-c", "echo broken pipe >&2; exit 3")
		Expect(err).To(MatchError(ContainSubstring("broken pipe")))
	})
})
