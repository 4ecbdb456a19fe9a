package store_test

import (
	"context"

	"github.com/safestream/moderator/internal/store"
	"github.com/safestream/moderator/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("settings store", func() {
	var s store.Store

	BeforeEach(func() {
		s, _ = newTestStore()
	})

	AfterEach(func() {
		s.Close()
	})

	It("creates the defaults on first read", func() {
		settings, err := s.Settings().Get(context.TODO())
		Expect(err).To(BeNil())
		Expect(settings.MaxDurationSeconds).To(Equal(600.0))
		Expect(settings.MaxFileSizeMB).To(Equal(100))
		Expect(settings.SupportedFormats).To(ContainElements("video/mp4", "video/webm"))
		Expect(settings.IsFormatSupported("video/quicktime")).To(BeTrue())
		Expect(settings.IsFormatSupported("image/png")).To(BeFalse())
	})

	It("returns updated values on the next read", func() {
		updated := model.DefaultSystemSettings()
		updated.MaxDurationSeconds = 120
		_, err := s.Settings().Update(context.TODO(), updated)
		Expect(err).To(BeNil())

		settings, err := s.Settings().Get(context.TODO())
		Expect(err).To(BeNil())
		Expect(settings.MaxDurationSeconds).To(Equal(120.0))
	})

	It("rejects invalid settings", func() {
		invalid := model.DefaultSystemSettings()
		invalid.MaxDurationSeconds = 0
		invalid.SupportedFormats = nil

		_, err := s.Settings().Update(context.TODO(), invalid)
		Expect(err).ToNot(BeNil())

		var target *store.ErrInvalidSettings
		Expect(err).To(BeAssignableToTypeOf(target))
	})
})
