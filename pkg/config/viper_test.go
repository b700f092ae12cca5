package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/config"
)

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("relay.upstream")).To(Equal(defaults.Relay.Upstream))
		Expect(v.GetString("relay.model")).To(Equal(defaults.Relay.Model))
		Expect(v.GetString("relay.listen")).To(Equal(defaults.Relay.Listen))
		Expect(v.GetString("api.listen")).To(Equal(defaults.API.Listen))
		Expect(v.GetString("client.relay_target")).To(Equal(defaults.Client.RelayTarget))
		Expect(v.GetUint("client.tick_ms")).To(Equal(defaults.Client.TickMs))
		Expect(v.GetString("eventstream.topic")).To(Equal(defaults.EventStream.Topic))
		Expect(v.GetString("relay.api_key")).To(BeEmpty())
	})

	It("reads config file values over defaults", func() {
		writeConfig(tmpDir, `[relay]
model = "gpt-4o"
`)

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("relay.model")).To(Equal("gpt-4o"))
		Expect(v.GetString("relay.listen")).To(Equal(config.NewDefaultConfig().Relay.Listen))
	})

	It("respects environment variables with QUILL_ prefix", func() {
		GinkgoT().Setenv("QUILL_RELAY_API_KEY", "sk-env")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("relay.api_key")).To(Equal("sk-env"))
	})

	It("env vars take precedence over config file values", func() {
		writeConfig(tmpDir, `[relay]
model = "gpt-4o"
`)
		GinkgoT().Setenv("QUILL_RELAY_MODEL", "gpt-4.1")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("relay.model")).To(Equal("gpt-4.1"))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListenStandalone})
		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("flags win over env vars", func() {
		GinkgoT().Setenv("QUILL_RELAY_MODEL", "from-env")
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var model string
		config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)
		Expect(cmd.Flags().Set("model", "from-flag")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagModel})
		Expect(v.GetString("relay.model")).To(Equal("from-flag"))
	})

	It("falls through to config when flag not set", func() {
		writeConfig(tmpDir, `[api]
listen = ":5555"
`)
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &listen)

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListenStandalone})
		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})
		Expect(v.GetString("relay.listen")).To(Equal(config.NewDefaultConfig().Relay.Listen))
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &target)

		f := cmd.Flags().Lookup("upstream")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("u"))
		Expect(f.Usage).To(Equal(config.Flags[config.FlagUpstream].Description))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Relay.Upstream))
	})

	It("AddUintFlag defaults tick-ms", func() {
		cmd := &cobra.Command{Use: "test"}
		var tick uint
		config.AddUintFlag(cmd, config.Flags, config.FlagTickMs, &tick)

		f := cmd.Flags().Lookup("tick-ms")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("10"))
	})

	It("ignores unknown registry keys when adding flags", func() {
		cmd := &cobra.Command{Use: "test"}
		var s string
		config.AddStringFlag(cmd, config.Flags, "nope", &s)
		Expect(cmd.Flags().HasFlags()).To(BeFalse())
	})
})
