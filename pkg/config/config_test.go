package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/config"
)

func writeConfig(dir, data string) {
	Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0o600)).To(Succeed())
}

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(tmpDir, `version = 0

[storage]
sqlite_path = "/tmp/quill.sqlite"
postgres_dsn = "postgres://quill@localhost/quill"

[relay]
listen = ":9090"
upstream = "https://openrouter.ai/api/v1"
model = "openai/gpt-4o"
api_key = "sk-test"
persona = "Be brief. Language: {{.Language}}"

[api]
listen = ":9091"

[client]
relay_target = "http://myhost:9090"
api_target = "http://myhost:9091"
tick_ms = 25

[eventstream]
brokers = "kafka-1:9092,kafka-2:9092"
topic = "turns"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/quill.sqlite"))
			Expect(cfg.Storage.PostgresDSN).To(Equal("postgres://quill@localhost/quill"))
			Expect(cfg.Relay.Listen).To(Equal(":9090"))
			Expect(cfg.Relay.Upstream).To(Equal("https://openrouter.ai/api/v1"))
			Expect(cfg.Relay.Model).To(Equal("openai/gpt-4o"))
			Expect(cfg.Relay.APIKey).To(Equal("sk-test"))
			Expect(cfg.Relay.Persona).To(Equal("Be brief. Language: {{.Language}}"))
			Expect(cfg.API.Listen).To(Equal(":9091"))
			Expect(cfg.Client.RelayTarget).To(Equal("http://myhost:9090"))
			Expect(cfg.Client.APITarget).To(Equal("http://myhost:9091"))
			Expect(cfg.Client.TickMs).To(Equal(uint(25)))
			Expect(cfg.EventStream.Brokers).To(Equal("kafka-1:9092,kafka-2:9092"))
			Expect(cfg.EventStream.Topic).To(Equal("turns"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(tmpDir, `[relay]
model = "gpt-4o"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Relay.Model).To(Equal("gpt-4o"))
			Expect(cfg.Relay.Upstream).To(Equal(defaults.Relay.Upstream))
			Expect(cfg.Relay.Listen).To(Equal(defaults.Relay.Listen))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Client.TickMs).To(Equal(defaults.Client.TickMs))
			Expect(cfg.EventStream.Topic).To(Equal(defaults.EventStream.Topic))
			Expect(cfg.Relay.APIKey).To(BeEmpty())
		})

		It("returns error for malformed TOML", func() {
			writeConfig(tmpDir, "not valid toml [[[")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for unsupported config version", func() {
			writeConfig(tmpDir, "version = 99\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk and loads it back", func() {
			cfg := config.NewDefaultConfig()
			cfg.Relay.Model = "gpt-4o"
			cfg.Relay.APIKey = "sk-saved"

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(HaveOccurred())
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets and gets a string value", func() {
			Expect(c.SetConfigValue("relay.upstream", "http://localhost:11434/v1")).To(Succeed())

			value, err := c.GetConfigValue("relay.upstream")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("http://localhost:11434/v1"))
		})

		It("sets a uint value", func() {
			Expect(c.SetConfigValue("client.tick_ms", "40")).To(Succeed())

			value, err := c.GetConfigValue("client.tick_ms")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("40"))
		})

		It("rejects invalid uint values", func() {
			Expect(c.SetConfigValue("client.tick_ms", "fast")).To(MatchError(ContainSubstring("client.tick_ms")))
		})

		It("preserves other values", func() {
			Expect(c.SetConfigValue("relay.model", "gpt-4o")).To(Succeed())
			Expect(c.SetConfigValue("eventstream.topic", "turns")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Relay.Model).To(Equal("gpt-4o"))
			Expect(cfg.EventStream.Topic).To(Equal("turns"))
		})

		It("rejects unknown keys", func() {
			Expect(c.SetConfigValue("proxy.provider", "x")).To(MatchError(ContainSubstring("unknown config key")))

			_, err := c.GetConfigValue("proxy.provider")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(13))
			Expect(keys[0]).To(Equal("relay.listen"))
			Expect(keys).To(ContainElements("relay.api_key", "storage.postgres_dsn", "client.tick_ms", "eventstream.brokers"))
		})

		It("agrees with IsValidConfigKey", func() {
			for _, k := range config.ValidConfigKeys() {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
			}
			Expect(config.IsValidConfigKey("nope")).To(BeFalse())
		})

		It("marks credentials as secret", func() {
			Expect(config.IsSecretKey("relay.api_key")).To(BeTrue())
			Expect(config.IsSecretKey("storage.postgres_dsn")).To(BeTrue())
			Expect(config.IsSecretKey("relay.model")).To(BeFalse())
			Expect(config.IsSecretKey("nope")).To(BeFalse())
		})
	})
})

var _ = Describe("PresetConfig", func() {
	DescribeTable("known presets",
		func(name, upstream string) {
			cfg, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Relay.Upstream).To(Equal(upstream))
			Expect(cfg.Relay.Model).NotTo(BeEmpty())
			Expect(cfg.Relay.Listen).To(Equal(config.NewDefaultConfig().Relay.Listen))
		},
		Entry("openai", "openai", "https://api.openai.com/v1"),
		Entry("openrouter", "openrouter", "https://openrouter.ai/api/v1"),
		Entry("ollama", "ollama", "http://localhost:11434/v1"),
		Entry("case insensitive", "OpenAI", "https://api.openai.com/v1"),
	)

	It("only fills a placeholder key for ollama", func() {
		cfg, err := config.PresetConfig("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Relay.APIKey).To(BeEmpty())

		cfg, err = config.PresetConfig("ollama")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Relay.APIKey).To(Equal("ollama"))
	})

	It("rejects unknown presets", func() {
		_, err := config.PresetConfig("anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		Expect(config.ValidPresetNames()).To(ConsistOf("openai", "openrouter", "ollama"))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("parses a minimal config", func() {
		cfg, err := config.ParseConfigTOML([]byte("[api]\nlisten = \":1234\"\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.API.Listen).To(Equal(":1234"))
	})

	It("does not apply defaults", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Relay.Upstream).To(BeEmpty())
	})
})
