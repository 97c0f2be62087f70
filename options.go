package gzhmu

import (
	"time"

	"github.com/rs/zerolog"
)

// Option is a function that configures a Client.
type Option func(*Client)

// WithWebVPN sets whether requests to campus hosts are routed through
// the Web VPN gateway. Enable this when the client runs outside the
// campus network.
func WithWebVPN(webvpn bool) Option {
	return func(c *Client) {
		c.webvpn = webvpn
	}
}

// WithProxy sets the HTTP or SOCKS proxy for all requests.
func WithProxy(proxy string) Option {
	return func(c *Client) {
		c.proxy = proxy
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithLogger sets the logger used for debug events. The default logger
// discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSSOBase overrides the SSO server base URL.
func WithSSOBase(base string) Option {
	return func(c *Client) {
		c.ssoBase = base
	}
}

// WithPortalBase overrides the portal server base URL.
func WithPortalBase(base string) Option {
	return func(c *Client) {
		c.portalBase = base
	}
}

// WithLibraryBase overrides the library reservation server base URL.
func WithLibraryBase(base string) Option {
	return func(c *Client) {
		c.libraryBase = base
	}
}
