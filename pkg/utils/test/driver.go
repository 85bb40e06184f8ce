package testutils

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/stream"
)

// DescribeDriver registers the behaviors every storage.Driver shares.
// newDriver is called before each spec and must return an empty store.
func DescribeDriver(newDriver func(ctx context.Context) storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver(ctx)
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	newSession := func(source string, started time.Time) *storage.Session {
		s := storage.NewSession(source)
		s.StartedAt = started
		Expect(driver.CreateSession(ctx, s)).To(Succeed())
		return s
	}

	Describe("sessions", func() {
		It("stores and retrieves a session", func() {
			started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			s := newSession("file:run.sse", started)

			got, err := driver.GetSession(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(s.ID))
			Expect(got.Source).To(Equal("file:run.sse"))
			Expect(got.StartedAt.Equal(started)).To(BeTrue())
			Expect(got.EndedAt).To(BeNil())
		})

		It("returns NotFoundError for unknown sessions", func() {
			_, err := driver.GetSession(ctx, "missing")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.ID).To(Equal("missing"))
		})

		It("completes a session with its counters", func() {
			s := newSession("stdin", time.Now().UTC())
			ended := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)

			Expect(driver.CompleteSession(ctx, s.ID, storage.Completion{
				EndedAt:     ended,
				LineCount:   10,
				EventCount:  12,
				ParseErrors: 1,
			})).To(Succeed())

			got, err := driver.GetSession(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.EndedAt).NotTo(BeNil())
			Expect(got.EndedAt.Equal(ended)).To(BeTrue())
			Expect(got.LineCount).To(Equal(10))
			Expect(got.EventCount).To(Equal(12))
			Expect(got.ParseErrors).To(Equal(1))
		})

		It("fails to complete an unknown session", func() {
			err := driver.CompleteSession(ctx, "missing", storage.Completion{EndedAt: time.Now()})
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
		})

		It("lists sessions newest first", func() {
			base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			oldest := newSession("a", base)
			middle := newSession("b", base.Add(time.Minute))
			newest := newSession("c", base.Add(2*time.Minute))

			all, err := driver.ListSessions(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(Equal(newest.ID))
			Expect(all[1].ID).To(Equal(middle.ID))
			Expect(all[2].ID).To(Equal(oldest.ID))

			limited, err := driver.ListSessions(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(limited).To(HaveLen(2))
			Expect(limited[0].ID).To(Equal(newest.ID))
		})
	})

	Describe("lines and records", func() {
		It("returns lines in index order", func() {
			s := newSession("stdin", time.Now().UTC())

			Expect(driver.AppendLine(ctx, &storage.Line{SessionID: s.ID, Index: 1, Text: "data: b"})).To(Succeed())
			Expect(driver.AppendLine(ctx, &storage.Line{SessionID: s.ID, Index: 0, Text: "data: a"})).To(Succeed())

			lines, err := driver.Lines(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(HaveLen(2))
			Expect(lines[0].Text).To(Equal("data: a"))
			Expect(lines[1].Text).To(Equal("data: b"))
		})

		It("stores decoded events that decode back", func() {
			s := newSession("stdin", time.Now().UTC())

			for i, ev := range []stream.Event{
				stream.StreamStart{},
				stream.ToolInvocation{FunctionName: "search_web"},
				stream.StreamEnd{},
			} {
				record, err := storage.NewRecord(s.ID, i, ev)
				Expect(err).NotTo(HaveOccurred())
				Expect(driver.AppendRecord(ctx, record)).To(Succeed())
			}

			records, err := driver.Records(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[1].Kind).To(Equal(stream.KindToolInvocation))

			ev, err := records[1].Event()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(stream.ToolInvocation{FunctionName: "search_web"}))
		})

		It("rejects lines for unknown sessions", func() {
			err := driver.AppendLine(ctx, &storage.Line{SessionID: "missing", Index: 0, Text: "x"})
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
		})

		It("rejects nil values", func() {
			Expect(driver.CreateSession(ctx, nil)).NotTo(Succeed())
			Expect(driver.AppendLine(ctx, nil)).NotTo(Succeed())
			Expect(driver.AppendRecord(ctx, nil)).NotTo(Succeed())
		})

		It("returns NotFoundError when listing lines of an unknown session", func() {
			_, err := driver.Lines(ctx, "missing")
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))

			_, err = driver.Records(ctx, "missing")
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
		})
	})
}
