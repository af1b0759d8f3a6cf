package config_test

import (
	"github.com/nabbar/netkit/network/protocol"
	"github.com/nabbar/netkit/socket/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client configuration", func() {
	Context("zero value", func() {
		It("has no protocol and an empty address", func() {
			var c config.Client
			Expect(c.Network).To(Equal(protocol.NetworkEmpty))
			Expect(c.Address).To(BeEmpty())
			Expect(c.TLS.Enabled).To(BeFalse())
		})
	})

	Context("TCP validation", func() {
		It("accepts a resolvable TCP address", func() {
			c := config.Client{Network: protocol.NetworkTCP, Address: "localhost:8080"}
			Expect(c.Validate()).To(Succeed())
		})

		It("accepts a resolvable TCP6 address", func() {
			c := config.Client{Network: protocol.NetworkTCP6, Address: "[::1]:8080"}
			Expect(c.Validate()).To(Succeed())
		})

		It("rejects an unresolvable address", func() {
			c := config.Client{Network: protocol.NetworkTCP, Address: "not-an-address"}
			Expect(c.Validate()).To(HaveOccurred())
		})
	})

	Context("UDP validation", func() {
		It("accepts a resolvable UDP address", func() {
			c := config.Client{Network: protocol.NetworkUDP, Address: "localhost:9000"}
			Expect(c.Validate()).To(Succeed())
		})
	})

	Context("invalid protocol", func() {
		It("rejects an unsupported protocol", func() {
			c := config.Client{Network: protocol.NetworkEmpty, Address: "localhost:8080"}
			Expect(c.Validate()).To(MatchError(config.ErrInvalidProtocol))
		})
	})

	Context("buffer size", func() {
		It("defaults when unset", func() {
			var c config.Client
			Expect(c.BufSize()).To(Equal(config.DefaultBufferSize))
		})

		It("keeps an explicit value", func() {
			c := config.Client{BufferSize: 65536}
			Expect(c.BufSize()).To(Equal(65536))
		})
	})
})

var _ = Describe("Server configuration", func() {
	Context("TCP validation", func() {
		It("accepts a listen-all address", func() {
			s := config.Server{Network: protocol.NetworkTCP, Address: ":8080"}
			Expect(s.Validate()).To(Succeed())
		})
	})

	Context("invalid protocol", func() {
		It("rejects an unsupported protocol", func() {
			s := config.Server{Network: protocol.NetworkEmpty, Address: ":8080"}
			Expect(s.Validate()).To(MatchError(config.ErrInvalidProtocol))
		})
	})
})
