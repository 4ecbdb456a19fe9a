package store_test

import (
	"context"
	"time"

	"github.com/safestream/moderator/internal/store"
	"github.com/safestream/moderator/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("video store", func() {
	var (
		s      store.Store
		gormdb *gorm.DB
		ctx    context.Context
	)

	BeforeEach(func() {
		s, gormdb = newTestStore()
		ctx = context.TODO()

		_, err := s.Video().Save(ctx, model.Video{
			ID:           "job-1",
			Title:        "holiday",
			Description:  "beach trip",
			MediaLocator: "https://cdn.example.com/job-1.mp4",
		})
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		s.Close()
	})

	Context("get", func() {
		It("returns the saved video with pending statuses", func() {
			video, err := s.Video().Get(ctx, "job-1")
			Expect(err).To(BeNil())
			Expect(video.Title).To(Equal("holiday"))
			Expect(video.Status).To(Equal(model.VideoStatusPending))
			Expect(video.ModerationStatus).To(Equal(model.ModerationStatusPending))
			Expect(video.IsReviewed()).To(BeFalse())
		})

		It("maps a missing row to ErrRecordNotFound", func() {
			_, err := s.Video().Get(ctx, "missing")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("partial updates", func() {
		It("updates the status without touching other columns", func() {
			Expect(s.Video().UpdateStatus(ctx, "job-1", model.VideoStatusProcessing)).To(Succeed())

			video, err := s.Video().Get(ctx, "job-1")
			Expect(err).To(BeNil())
			Expect(video.Status).To(Equal(model.VideoStatusProcessing))
			Expect(video.Title).To(Equal("holiday"))
			Expect(video.MediaLocator).To(Equal("https://cdn.example.com/job-1.mp4"))
		})

		It("fails for an unknown id", func() {
			err := s.Video().UpdateStatus(ctx, "missing", model.VideoStatusProcessing)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("persists the probed duration", func() {
			Expect(s.Video().UpdateDuration(ctx, "job-1", 42.5)).To(Succeed())

			video, err := s.Video().Get(ctx, "job-1")
			Expect(err).To(BeNil())
			Expect(video.Duration).To(Equal(42.5))
		})
	})

	Context("verdict", func() {
		It("overwrites the moderation detail", func() {
			checked := time.Now().UTC().Truncate(time.Second)
			err := s.Video().SaveVerdict(ctx, "job-1", model.VideoStatusFlagged, model.ModerationStatusPending, model.ModerationDetail{
				CheckedAt:      &checked,
				VisualScore:    0.98,
				FramesAnalyzed: 3,
				LabelsFound:    []string{"Explicit Nudity", "Violence"},
				Flags:          []string{"Explicit Nudity", "Violence"},
				DecisionReason: "AI detected sensitive content: Explicit Nudity, Violence",
			})
			Expect(err).To(BeNil())

			err = s.Video().SaveVerdict(ctx, "job-1", model.VideoStatusSafe, model.ModerationStatusApproved, model.ModerationDetail{
				CheckedAt:      &checked,
				VisualScore:    0.05,
				FramesAnalyzed: 1,
				DecisionReason: "Automated checks passed",
			})
			Expect(err).To(BeNil())

			video, err := s.Video().Get(ctx, "job-1")
			Expect(err).To(BeNil())
			Expect(video.Status).To(Equal(model.VideoStatusSafe))
			Expect(video.ModerationStatus).To(Equal(model.ModerationStatusApproved))
			Expect(video.Moderation.VisualScore).To(Equal(0.05))
			Expect(video.Moderation.FramesAnalyzed).To(Equal(1))
			Expect(video.Moderation.LabelsFound).To(BeEmpty())
			Expect(video.Moderation.Flags).To(BeEmpty())
			Expect(video.Moderation.DecisionReason).To(Equal("Automated checks passed"))
			Expect(video.Moderation.CheckedAt).ToNot(BeNil())
		})

		It("keeps previous labels on failure", func() {
			err := s.Video().SaveVerdict(ctx, "job-1", model.VideoStatusFlagged, model.ModerationStatusPending, model.ModerationDetail{
				VisualScore:    0.98,
				FramesAnalyzed: 2,
				LabelsFound:    []string{"Violence"},
				Flags:          []string{"Violence"},
			})
			Expect(err).To(BeNil())

			err = s.Video().SaveFailure(ctx, "job-1", model.VideoStatusFailed, model.ModerationStatusFailed, "Video too long (700s). Limit is 600s.", time.Now())
			Expect(err).To(BeNil())

			video, err := s.Video().Get(ctx, "job-1")
			Expect(err).To(BeNil())
			Expect(video.Status).To(Equal(model.VideoStatusFailed))
			Expect(video.ModerationStatus).To(Equal(model.ModerationStatusFailed))
			Expect(video.Moderation.DecisionReason).To(Equal("Video too long (700s). Limit is 600s."))
			Expect(video.Moderation.LabelsFound).To(Equal([]string{"Violence"}))
		})
	})

	Context("review", func() {
		It("approves a video", func() {
			video, err := s.Video().RecordReview(ctx, "job-1", true, "alice")
			Expect(err).To(BeNil())
			Expect(video.Status).To(Equal(model.VideoStatusSafe))
			Expect(video.ModerationStatus).To(Equal(model.ModerationStatusApproved))
			Expect(video.ReviewedBy).To(Equal("alice"))
			Expect(video.IsReviewed()).To(BeTrue())
		})

		It("rejects a video and clears the marker", func() {
			video, err := s.Video().RecordReview(ctx, "job-1", false, "bob")
			Expect(err).To(BeNil())
			Expect(video.Status).To(Equal(model.VideoStatusFailed))
			Expect(video.ModerationStatus).To(Equal(model.ModerationStatusRejected))

			Expect(s.Video().ClearReview(ctx, "job-1")).To(Succeed())
			video, err = s.Video().Get(ctx, "job-1")
			Expect(err).To(BeNil())
			Expect(video.IsReviewed()).To(BeFalse())
			Expect(video.ReviewedBy).To(BeEmpty())
		})
	})

	Context("status sync", func() {
		It("derives the moderation status", func() {
			video, err := s.Video().SyncStatus(ctx, "job-1", model.VideoStatusFlagged)
			Expect(err).To(BeNil())
			Expect(video.ModerationStatus).To(Equal(model.ModerationStatusPending))

			video, err = s.Video().SyncStatus(ctx, "job-1", model.VideoStatusFailed)
			Expect(err).To(BeNil())
			Expect(video.ModerationStatus).To(Equal(model.ModerationStatusRejected))
		})
	})

	Context("transaction", func() {
		It("rolls back a status change", func() {
			txCtx, err := s.NewTransactionContext(ctx)
			Expect(err).To(BeNil())

			Expect(s.Video().UpdateStatus(txCtx, "job-1", model.VideoStatusProcessing)).To(Succeed())

			_, err = store.Rollback(txCtx)
			Expect(err).To(BeNil())

			var status string
			Expect(gormdb.Raw("SELECT status FROM videos WHERE id = ?", "job-1").Scan(&status).Error).To(BeNil())
			Expect(status).To(Equal(string(model.VideoStatusPending)))
		})

		It("commits a status change", func() {
			txCtx, err := s.NewTransactionContext(ctx)
			Expect(err).To(BeNil())

			Expect(s.Video().UpdateStatus(txCtx, "job-1", model.VideoStatusProcessing)).To(Succeed())

			_, err = store.Commit(txCtx)
			Expect(err).To(BeNil())

			var status string
			Expect(gormdb.Raw("SELECT status FROM videos WHERE id = ?", "job-1").Scan(&status).Error).To(BeNil())
			Expect(status).To(Equal(string(model.VideoStatusProcessing)))
		})
	})
})
