package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	netproxy "golang.org/x/net/proxy"
)

// ApplyProxy configures transport according to a proxy spec string. See
// ClientOptions.Proxy for the accepted forms. socks5 proxies replace the
// transport's dialer instead of its Proxy func.
func ApplyProxy(transport *http.Transport, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		transport.Proxy = nil
		return nil
	}

	switch strings.ToLower(raw) {
	case "0", "false", "off", "no", "none", "direct":
		transport.Proxy = nil
		return nil
	case "env":
		transport.Proxy = http.ProxyFromEnvironment
		return nil
	}

	u, err := ParseProxyURL(raw)
	if err != nil {
		return err
	}

	if u.Scheme == "socks5" {
		var auth *netproxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &netproxy.Auth{User: u.User.Username(), Password: password}
		}
		dialer, err := netproxy.SOCKS5("tcp", u.Host, auth, netproxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 proxy %q: %w", u.Host, err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(netproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
		return nil
	}

	transport.Proxy = http.ProxyURL(u)
	return nil
}

// ParseProxyURL parses a proxy spec into a URL. Specs without a scheme are
// treated as http ("127.0.0.1:7890" is common in configs).
func ParseProxyURL(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty proxy url")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("unsupported scheme %q (only http/https/socks5)", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}
