package capture_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/runstream/pkg/capture"
	"github.com/papercomputeco/runstream/pkg/storage/inmemory"
	"github.com/papercomputeco/runstream/pkg/stream"
	testutils "github.com/papercomputeco/runstream/pkg/utils/test"
	"github.com/papercomputeco/runstream/pkg/worker"
)

// collector is a Sink that keeps every event.
type collector struct {
	events []stream.Event
}

func (c *collector) Handle(ev stream.Event) error {
	c.events = append(c.events, ev)
	return nil
}

var _ = Describe("Run", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("delivers the decoded events to every sink", func() {
		a, b := &collector{}, &collector{}

		summary, err := capture.Run(ctx, strings.NewReader(testutils.SampleRunText()), capture.Config{
			Source: "test",
			Sinks:  []capture.Sink{a, b},
		})
		Expect(err).NotTo(HaveOccurred())

		expected := stream.DecodeAll(testutils.SampleRun())
		Expect(a.events).To(Equal(expected))
		Expect(b.events).To(Equal(expected))

		Expect(summary.Lines).To(Equal(len(testutils.SampleRun())))
		Expect(summary.Events).To(Equal(len(expected)))
		Expect(summary.ParseErrors).To(BeZero())
		Expect(summary.Counts[stream.KindToolInvocation]).To(Equal(1))
		Expect(summary.Counts[stream.KindStreamEnd]).To(Equal(1))
	})

	It("writes a verbatim capture", func() {
		var record bytes.Buffer
		_, err := capture.Run(ctx, strings.NewReader(testutils.SampleRunText()), capture.Config{Record: &record})
		Expect(err).NotTo(HaveOccurred())
		Expect(record.String()).To(Equal(testutils.SampleRunText()))
	})

	It("counts parse errors", func() {
		summary, err := capture.Run(ctx, strings.NewReader("data: nope\ndata: {bad\n"), capture.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.ParseErrors).To(Equal(2))
	})

	It("stops at the first sink error", func() {
		calls := 0
		failing := capture.SinkFunc(func(stream.Event) error {
			calls++
			return errors.New("terminal closed")
		})

		_, err := capture.Run(ctx, strings.NewReader(testutils.SampleRunText()), capture.Config{
			Sinks: []capture.Sink{failing},
		})
		Expect(err).To(MatchError(ContainSubstring("terminal closed")))
		Expect(calls).To(Equal(1))
	})

	It("returns the context error when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		c := &collector{}
		stopper := capture.SinkFunc(func(ev stream.Event) error {
			if ev.Kind() == stream.KindStatus {
				cancel()
			}
			return nil
		})

		_, err := capture.Run(cctx, strings.NewReader(testutils.SampleRunText()), capture.Config{
			Sinks: []capture.Sink{stopper, c},
		})
		Expect(err).To(MatchError(context.Canceled))
		Expect(c.events).NotTo(ContainElement(stream.StreamEnd{}))
	})

	It("reports source errors after the stream end", func() {
		src := io.MultiReader(strings.NewReader("data: {\"type\":\"status\"}\n"), errReader{})
		c := &collector{}

		_, err := capture.Run(ctx, src, capture.Config{Sinks: []capture.Sink{c}})
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
		Expect(c.events[len(c.events)-1]).To(Equal(stream.StreamEnd{}))
	})

	It("records the session through the worker pool", func() {
		driver := inmemory.NewDriver()
		publisher := testutils.NewMockPublisher()
		pool, err := worker.NewPool(&worker.Config{Driver: driver, Publisher: publisher})
		Expect(err).NotTo(HaveOccurred())

		summary, err := capture.Run(ctx, strings.NewReader(testutils.SampleRunText()), capture.Config{
			Source: "file:sample.sse",
			Pool:   pool,
		})
		Expect(err).NotTo(HaveOccurred())
		pool.Close()

		session, err := driver.GetSession(ctx, summary.SessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.Source).To(Equal("file:sample.sse"))
		Expect(session.EndedAt).NotTo(BeNil())
		Expect(session.LineCount).To(Equal(summary.Lines))
		Expect(session.EventCount).To(Equal(summary.Events))

		lines, err := driver.Lines(ctx, summary.SessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(summary.Lines))
		Expect(lines[0].Text).To(Equal(testutils.SampleRun()[0]))

		records, err := driver.Records(ctx, summary.SessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(summary.Events))

		Expect(publisher.Events()).To(HaveLen(summary.Events))
	})

	It("records in best-effort mode", func() {
		driver := inmemory.NewDriver()
		pool, err := worker.NewPool(&worker.Config{Driver: driver})
		Expect(err).NotTo(HaveOccurred())

		summary, err := capture.Run(ctx, strings.NewReader(testutils.SampleRunText()), capture.Config{
			Source:     "relay",
			Pool:       pool,
			BestEffort: true,
		})
		Expect(err).NotTo(HaveOccurred())
		pool.Close()

		session, err := driver.GetSession(ctx, summary.SessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.EndedAt).NotTo(BeNil())

		records, err := driver.Records(ctx, summary.SessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(summary.Events))
	})
})

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}
