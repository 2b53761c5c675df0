package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/landaudiogo/cc-assignment-2023/internal/broker"
	"github.com/landaudiogo/cc-assignment-2023/internal/events"
)

// RunIngest consumes consumer with auto-commit until ctx is canceled,
// ingesting every experiment_document delivery into store. Malformed
// payloads are logged and skipped rather than aborting the consumer loop.
func RunIngest(ctx context.Context, consumer broker.Consumer, store *Store, log *logrus.Entry) error {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return consumer.Consume(ctx, func(msg broker.ConsumedMessage) error {
		if broker.Header(msg.Headers, events.HeaderRecordName) != string(events.RecordExperimentDocument) {
			return nil
		}
		doc, err := events.UnmarshalExperimentDocument(msg.Value)
		if err != nil {
			log.WithError(err).Warn("failed to decode experiment_document event")
			return nil
		}
		store.Ingest(doc)
		return nil
	})
}
