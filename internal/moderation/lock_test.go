package moderation_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/safestream/moderator/internal/moderation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("lockers", func() {
	Context("memory", func() {
		It("grants one holder per job", func() {
			l := moderation.NewMemoryLocker()

			release, ok, err := l.TryLock(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			_, ok, err = l.TryLock(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())

			_, ok, _ = l.TryLock(context.TODO(), "job-2")
			Expect(ok).To(BeTrue())

			release()
			release()
			_, ok, _ = l.TryLock(context.TODO(), "job-1")
			Expect(ok).To(BeTrue())
		})

		It("lets a single caller win a race", func() {
			l := moderation.NewMemoryLocker()
			var winners atomic.Int32
			var wg sync.WaitGroup
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, ok, _ := l.TryLock(context.TODO(), "job-race"); ok {
						winners.Add(1)
					}
				}()
			}
			wg.Wait()
			Expect(winners.Load()).To(Equal(int32(1)))
		})
	})

	Context("redis", func() {
		var (
			mr     *miniredis.Miniredis
			client *redis.Client
		)

		BeforeEach(func() {
			var err error
			mr, err = miniredis.Run()
			Expect(err).To(BeNil())
			DeferCleanup(mr.Close)

			client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
			DeferCleanup(client.Close)
		})

		It("grants one holder per job across lockers", func() {
			first := moderation.NewRedisLocker(client, time.Minute)
			second := moderation.NewRedisLocker(client, time.Minute)

			release, ok, err := first.TryLock(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(mr.Exists("moderation:lock:job-1")).To(BeTrue())

			_, ok, err = second.TryLock(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())

			release()
			Expect(mr.Exists("moderation:lock:job-1")).To(BeFalse())

			_, ok, _ = second.TryLock(context.TODO(), "job-1")
			Expect(ok).To(BeTrue())
		})

		It("frees the job once the lease expires", func() {
			l := moderation.NewRedisLocker(client, time.Minute)

			release, ok, _ := l.TryLock(context.TODO(), "job-1")
			Expect(ok).To(BeTrue())
			mr.FastForward(2 * time.Minute)

			otherRelease, ok, _ := l.TryLock(context.TODO(), "job-1")
			Expect(ok).To(BeTrue())

			release()
			Expect(mr.Exists("moderation:lock:job-1")).To(BeTrue())

			otherRelease()
			Expect(mr.Exists("moderation:lock:job-1")).To(BeFalse())
		})

		It("reports an unreachable server", func() {
			l := moderation.NewRedisLocker(client, time.Minute)
			mr.Close()

			_, ok, err := l.TryLock(context.TODO(), "job-1")
			Expect(err).ToNot(BeNil())
			Expect(ok).To(BeFalse())
		})
	})
})
