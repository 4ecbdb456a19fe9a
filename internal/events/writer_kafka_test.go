package events

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("kafka writer", func() {
	It("sends the event keyed by subject", func() {
		producer := mocks.NewSyncProducer(GinkgoT(), sarama.NewConfig())
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Topic != "moderation" {
				return errors.New("unexpected topic " + msg.Topic)
			}
			key, _ := msg.Key.Encode()
			if string(key) != "job-1" {
				return errors.New("unexpected key " + string(key))
			}
			return nil
		})

		w := NewKafkaWriterWithProducer(producer)
		Expect(w.Write(context.TODO(), "moderation", progressEventWithSubject("job-1"))).To(Succeed())
		Expect(w.Close(context.TODO())).To(Succeed())
	})

	It("returns broker errors", func() {
		producer := mocks.NewSyncProducer(GinkgoT(), sarama.NewConfig())
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		w := NewKafkaWriterWithProducer(producer)
		err := w.Write(context.TODO(), "moderation", progressEventWithSubject("job-1"))
		Expect(err).To(MatchError(ContainSubstring("failed to send event to kafka")))
		Expect(w.Close(context.TODO())).To(Succeed())
	})
})

func progressEventWithSubject(subject string) cloudevents.Event {
	e := progressEvent(subject)
	e.SetID("id-1")
	e.SetSource("tests")
	e.SetSubject(subject)
	return e
}
