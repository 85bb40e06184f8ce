package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/storage/inmemory"
	"github.com/papercomputeco/runstream/pkg/stream"
	testutils "github.com/papercomputeco/runstream/pkg/utils/test"
	"github.com/papercomputeco/runstream/pkg/worker"
)

func readBody(resp *http.Response) []byte {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return body
}

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		var err error
		server, err = NewServer(Config{ListenAddr: ":0"}, driver, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	record := func(lines []string) *storage.Session {
		session := storage.NewSession("stdin")
		Expect(driver.CreateSession(ctx, session)).To(Succeed())

		for i, line := range lines {
			Expect(driver.AppendLine(ctx, &storage.Line{SessionID: session.ID, Index: i, Text: line})).To(Succeed())
		}
		for i, ev := range stream.DecodeAll(lines) {
			r, err := storage.NewRecord(session.ID, i, ev)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.AppendRecord(ctx, r)).To(Succeed())
		}
		return session
	}

	It("requires a storage driver", func() {
		_, err := NewServer(Config{}, nil, zap.NewNop())
		Expect(err).To(MatchError("storage driver is required"))
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(readBody(resp))).To(Equal(`"pong"`))
		})
	})

	Describe("GET /v1/sessions", func() {
		It("lists recorded sessions", func() {
			session := record(testutils.SampleRun())

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Count    int                `json:"count"`
				Sessions []*storage.Session `json:"sessions"`
			}
			Expect(json.Unmarshal(readBody(resp), &body)).To(Succeed())
			Expect(body.Count).To(Equal(1))
			Expect(body.Sessions[0].ID).To(Equal(session.ID))
		})

		It("rejects a bad limit", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/sessions?limit=many", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /v1/sessions/:id", func() {
		It("returns the session", func() {
			session := record(nil)

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/sessions/"+session.ID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got storage.Session
			Expect(json.Unmarshal(readBody(resp), &got)).To(Succeed())
			Expect(got.ID).To(Equal(session.ID))
			Expect(got.Source).To(Equal("stdin"))
		})

		It("returns 404 for unknown sessions", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/sessions/missing", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			var body ErrorResponse
			Expect(json.Unmarshal(readBody(resp), &body)).To(Succeed())
			Expect(body.Error).To(Equal("session not found"))
		})
	})

	Describe("GET /v1/sessions/:id/events", func() {
		It("returns the stored events in order", func() {
			session := record(testutils.SampleRun())

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/sessions/"+session.ID+"/events", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body SessionEventsResponse
			Expect(json.Unmarshal(readBody(resp), &body)).To(Succeed())

			expected := stream.DecodeAll(testutils.SampleRun())
			Expect(body.Count).To(Equal(len(expected)))
			for i, raw := range body.Events {
				ev, err := stream.Unmarshal(raw)
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(Equal(expected[i]))
			}
		})
	})

	Describe("GET /v1/sessions/:id/replay", func() {
		It("re-emits the raw lines as an event stream", func() {
			session := record(testutils.SampleRun())

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/sessions/"+session.ID+"/replay", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			Expect(string(readBody(resp))).To(Equal(testutils.SampleRunText()))
		})
	})

	Describe("POST /v1/decode", func() {
		It("decodes the request body", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/decode", strings.NewReader(testutils.SampleRunText()))
			req.Header.Set("Content-Type", "text/plain")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body DecodeResponse
			Expect(json.Unmarshal(readBody(resp), &body)).To(Succeed())
			Expect(body.Count).To(Equal(len(stream.DecodeAll(testutils.SampleRun()))))

			last, err := stream.Unmarshal(body.Events[body.Count-1])
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(Equal(stream.StreamEnd{}))
		})
	})
})

var _ = Describe("Relay", func() {
	var (
		upstream *httptest.Server
		driver   *inmemory.Driver
		pool     *worker.Pool
		server   *Server

		mu      sync.Mutex
		gotAuth string
	)

	BeforeEach(func() {
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			gotAuth = r.Header.Get("Authorization")
			mu.Unlock()

			if r.URL.Path != "/api/agent-run/run-1/stream" {
				http.Error(w, "no such run", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, testutils.SampleRunText())
		}))
		DeferCleanup(upstream.Close)

		driver = inmemory.NewDriver()

		var err error
		pool, err = worker.NewPool(&worker.Config{Driver: driver, Logger: zap.NewNop()})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		server, err = NewServer(Config{
			BaseURL: upstream.URL + "/api",
			Pool:    pool,
			NoMCP:   true,
		}, driver, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("forwards the run verbatim and records it", func() {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/stream", nil), 5000)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		sessionID := resp.Header.Get(SessionHeader)
		Expect(sessionID).NotTo(BeEmpty())
		Expect(string(readBody(resp))).To(Equal(testutils.SampleRunText()))

		// Closing drains the queued jobs.
		pool.Close()

		session, err := driver.GetSession(context.Background(), sessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.LineCount).To(Equal(len(testutils.SampleRun())))
		Expect(session.EndedAt).NotTo(BeNil())

		records, err := driver.Records(context.Background(), sessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(len(stream.DecodeAll(testutils.SampleRun()))))
	})

	It("forwards client credentials upstream", func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/stream", nil)
		req.Header.Set("Authorization", "Bearer client-token")

		resp, err := server.app.Test(req, 5000)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		readBody(resp)

		mu.Lock()
		defer mu.Unlock()
		Expect(gotAuth).To(Equal("Bearer client-token"))
	})

	It("passes upstream failures through", func() {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/runs/other/stream", nil), 5000)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

		var body ErrorResponse
		Expect(json.Unmarshal(readBody(resp), &body)).To(Succeed())
		Expect(body.Error).To(ContainSubstring("no such run"))
	})

	It("needs a base URL", func() {
		s, err := NewServer(Config{NoMCP: true}, driver, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/stream", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})
})

var _ = Describe("MCP mount", func() {
	It("serves the MCP handler at /mcp", func() {
		server, err := NewServer(Config{}, inmemory.NewDriver(), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		// An empty POST is rejected by the MCP handler, which still proves
		// the route is mounted.
		resp, err := server.app.Test(httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("")), int(time.Second/time.Millisecond))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).NotTo(Equal(http.StatusNotFound))
	})
})
