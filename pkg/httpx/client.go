package httpx

import (
	"net/http"
	"time"
)

type ClientOptions struct {
	Timeout time.Duration

	// Proxy routes outbound requests:
	// - "" / "direct" / "off": no proxy, even when HTTP_PROXY is set
	// - "env": honor the process proxy environment
	// - URL or host:port: fixed proxy (http, https or socks5)
	Proxy string

	// Transport allows providing a pre-configured transport.
	// When nil, it clones http.DefaultTransport.
	Transport *http.Transport
}

func NewClient(opts ClientOptions) (*http.Client, error) {
	var transport *http.Transport
	if opts.Transport != nil {
		transport = opts.Transport.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	if err := ApplyProxy(transport, opts.Proxy); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
