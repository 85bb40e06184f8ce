package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/runstream/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())

		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewManager", func() {
		It("targets credentials.toml in the override directory", func() {
			Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
		})
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds).NotTo(BeNil())
			Expect(creds.Hosts).To(BeEmpty())
		})

		It("loads existing credentials", func() {
			data := `version = 0

[hosts."agents.example.com"]
token = "tok-test"
`
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Hosts).To(HaveKey("agents.example.com"))
			Expect(creds.Hosts["agents.example.com"].Token).To(Equal("tok-test"))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte("not valid [[["), 0o600)
			Expect(err).NotTo(HaveOccurred())

			creds, err := mgr.Load()
			Expect(err).To(HaveOccurred())
			Expect(creds).To(BeNil())
		})
	})

	Describe("Save", func() {
		It("persists credentials to disk with restricted permissions", func() {
			err := mgr.Save(&credentials.Credentials{
				Hosts: map[string]credentials.HostCredential{
					"agents.example.com": {Token: "tok"},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(filepath.Join(tmpDir, "credentials.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil credentials", func() {
			Expect(mgr.Save(nil)).To(HaveOccurred())
		})
	})

	Describe("SetToken", func() {
		It("stores a token by host", func() {
			Expect(mgr.SetToken("agents.example.com", "tok-new")).To(Succeed())

			token, err := mgr.Token("agents.example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("tok-new"))
		})

		It("normalizes URLs to their host", func() {
			Expect(mgr.SetToken("https://Agents.Example.com/api", "tok")).To(Succeed())

			token, err := mgr.Token("https://agents.example.com/api/agent-run/abc/stream")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("tok"))
		})

		It("overwrites an existing token and keeps other hosts", func() {
			Expect(mgr.SetToken("a.example.com", "old")).To(Succeed())
			Expect(mgr.SetToken("b.example.com", "other")).To(Succeed())
			Expect(mgr.SetToken("a.example.com", "new")).To(Succeed())

			a, err := mgr.Token("a.example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal("new"))

			b, err := mgr.Token("b.example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal("other"))
		})

		It("rejects an empty host", func() {
			Expect(mgr.SetToken("  ", "tok")).To(HaveOccurred())
		})
	})

	Describe("Token", func() {
		It("returns empty string for unknown hosts", func() {
			token, err := mgr.Token("unknown.example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(BeEmpty())
		})
	})

	Describe("RemoveToken", func() {
		It("removes a stored token", func() {
			Expect(mgr.SetToken("agents.example.com", "tok")).To(Succeed())
			Expect(mgr.RemoveToken("agents.example.com")).To(Succeed())

			token, err := mgr.Token("agents.example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(BeEmpty())
		})

		It("does not error when removing a missing host", func() {
			Expect(mgr.RemoveToken("agents.example.com")).To(Succeed())
		})
	})

	Describe("ListHosts", func() {
		It("returns empty list when no credentials exist", func() {
			hosts, err := mgr.ListHosts()
			Expect(err).NotTo(HaveOccurred())
			Expect(hosts).To(BeEmpty())
		})

		It("returns sorted host names", func() {
			Expect(mgr.SetToken("b.example.com", "1")).To(Succeed())
			Expect(mgr.SetToken("a.example.com", "2")).To(Succeed())

			hosts, err := mgr.ListHosts()
			Expect(err).NotTo(HaveOccurred())
			Expect(hosts).To(Equal([]string{"a.example.com", "b.example.com"}))
		})
	})

	Describe("AuthorizationFor", func() {
		It("uses the stored token for the target host", func() {
			Expect(mgr.SetToken("agents.example.com", "tok")).To(Succeed())

			auth, err := mgr.AuthorizationFor("https://agents.example.com/api/agent-run/1/stream")
			Expect(err).NotTo(HaveOccurred())
			Expect(auth).To(Equal("Bearer tok"))
		})

		It("falls back to the environment token", func() {
			GinkgoT().Setenv(credentials.EnvToken, "env-tok")

			auth, err := mgr.AuthorizationFor("https://other.example.com/stream")
			Expect(err).NotTo(HaveOccurred())
			Expect(auth).To(Equal("Bearer env-tok"))
		})

		It("returns empty string without any token", func() {
			GinkgoT().Setenv(credentials.EnvToken, "")

			auth, err := mgr.AuthorizationFor("https://other.example.com/stream")
			Expect(err).NotTo(HaveOccurred())
			Expect(auth).To(BeEmpty())
		})
	})
})

var _ = Describe("NormalizeHost", func() {
	DescribeTable("reduces input to host[:port]",
		func(input, expected string) {
			host, err := credentials.NormalizeHost(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(host).To(Equal(expected))
		},
		Entry("bare host", "agents.example.com", "agents.example.com"),
		Entry("upper case", "Agents.Example.COM", "agents.example.com"),
		Entry("host with port", "localhost:8000", "localhost:8000"),
		Entry("host with path", "localhost:8000/api", "localhost:8000"),
		Entry("full URL", "http://localhost:8000/api/agent-run/x/stream", "localhost:8000"),
	)

	It("rejects URLs without a host", func() {
		_, err := credentials.NormalizeHost("file:///tmp/x")
		Expect(err).To(HaveOccurred())
	})
})
