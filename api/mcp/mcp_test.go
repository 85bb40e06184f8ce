package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/storage/inmemory"
	"github.com/papercomputeco/runstream/pkg/stream"
	testutils "github.com/papercomputeco/runstream/pkg/utils/test"
)

func resultText(result *mcp.CallToolResult) string {
	Expect(result.Content).To(HaveLen(1))
	text, ok := result.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		var err error
		server, err = NewServer(Config{
			Driver: driver,
			Logger: zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when logger is nil", func() {
			_, err := NewServer(Config{Driver: driver})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates a noop server without a logger", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("decode_stream", func() {
		It("decodes stream text into tagged events", func() {
			result, output, err := server.handleDecodeStream(ctx, nil, DecodeStreamInput{Text: testutils.SampleRunText()})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			expected := stream.DecodeAll(testutils.SampleRun())
			Expect(output.Count).To(Equal(len(expected)))
			Expect(output.Events[0]["event_type"]).To(Equal(string(stream.KindStreamStart)))
			Expect(output.Events[len(expected)-1]["event_type"]).To(Equal(string(stream.KindStreamEnd)))

			var fromText DecodeStreamOutput
			Expect(json.Unmarshal([]byte(resultText(result)), &fromText)).To(Succeed())
			Expect(fromText.Count).To(Equal(output.Count))
		})

		It("decodes empty input to a lone stream end", func() {
			_, output, err := server.handleDecodeStream(ctx, nil, DecodeStreamInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Count).To(Equal(1))
			Expect(output.Events[0]["event_type"]).To(Equal(string(stream.KindStreamEnd)))
		})
	})

	Describe("session tools", func() {
		var session *storage.Session

		BeforeEach(func() {
			session = storage.NewSession("stdin")
			Expect(driver.CreateSession(ctx, session)).To(Succeed())

			record, err := storage.NewRecord(session.ID, 0, stream.ToolInvocation{FunctionName: "search_web"})
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.AppendRecord(ctx, record)).To(Succeed())

			Expect(driver.CompleteSession(ctx, session.ID, storage.Completion{
				EndedAt:    time.Now().UTC(),
				LineCount:  3,
				EventCount: 1,
			})).To(Succeed())
		})

		It("lists recorded sessions", func() {
			result, output, err := server.handleListSessions(ctx, nil, ListSessionsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(1))
			Expect(output.Sessions[0].ID).To(Equal(session.ID))
			Expect(output.Sessions[0].LineCount).To(Equal(3))
			Expect(output.Sessions[0].EndedAt).NotTo(BeEmpty())
		})

		It("gets a session with its events", func() {
			result, output, err := server.handleGetSession(ctx, nil, GetSessionInput{ID: session.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Session.ID).To(Equal(session.ID))
			Expect(output.Events).To(HaveLen(1))
			Expect(output.Events[0]["function_name"]).To(Equal("search_web"))
		})

		It("reports unknown sessions as tool errors", func() {
			result, _, err := server.handleGetSession(ctx, nil, GetSessionInput{ID: "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(resultText(result)).To(ContainSubstring("Session not found"))
		})
	})
})
