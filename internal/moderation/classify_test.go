package moderation_test

import (
	"context"
	"errors"

	"github.com/safestream/moderator/internal/moderation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("classify frames", func() {
	frames := []string{"/tmp/frame-1.png", "/tmp/frame-2.png", "/tmp/frame-3.png"}

	It("keeps the frame order", func() {
		classifier := &fakeClassifier{perFrame: map[string][]moderation.Label{
			"frame-1.png": {{Name: "Alcohol", Confidence: 70}},
			"frame-3.png": {{Name: "Violence", Confidence: 90}},
		}}

		labels, err := moderation.ClassifyFrames(context.TODO(), classifier, frames, 5)
		Expect(err).To(BeNil())
		Expect(labels).To(HaveLen(3))
		Expect(labels[0]).To(Equal([]moderation.Label{{Name: "Alcohol", Confidence: 70}}))
		Expect(labels[1]).To(BeEmpty())
		Expect(labels[2]).To(Equal([]moderation.Label{{Name: "Violence", Confidence: 90}}))
	})

	It("classifies at most limit frames", func() {
		classifier := &fakeClassifier{}
		labels, err := moderation.ClassifyFrames(context.TODO(), classifier, frames, 2)
		Expect(err).To(BeNil())
		Expect(labels).To(HaveLen(2))
		Expect(classifier.Frames()).To(ConsistOf("frame-1.png", "frame-2.png"))
	})

	It("wraps service errors", func() {
		_, err := moderation.ClassifyFrames(context.TODO(), &fakeClassifier{err: errBoom}, frames, 5)
		var target *moderation.ErrClassificationService
		Expect(errors.As(err, &target)).To(BeTrue())
		Expect(err).To(MatchError(errBoom))
	})

	It("keeps typed errors", func() {
		stageErr := moderation.NewErrStage(moderation.StateAnalyzingVisuals, errBoom)
		_, err := moderation.ClassifyFrames(context.TODO(), &fakeClassifier{err: stageErr}, frames, 5)
		var target *moderation.ErrClassificationService
		Expect(errors.As(err, &target)).To(BeFalse())
		Expect(err).To(MatchError(stageErr))
	})

	It("recovers a panicking classifier", func() {
		_, err := moderation.ClassifyFrames(context.TODO(), &fakeClassifier{panicMsg: "bad frame"}, frames, 5)
		var target *moderation.ErrStage
		Expect(errors.As(err, &target)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("panic: bad frame"))
	})

	It("returns nothing for no frames", func() {
		labels, err := moderation.ClassifyFrames(context.TODO(), &fakeClassifier{}, nil, 5)
		Expect(err).To(BeNil())
		Expect(labels).To(BeEmpty())
	})
})
