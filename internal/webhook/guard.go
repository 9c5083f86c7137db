package webhook

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/boss/errors"
)

// ErrBlocked marks a destination refused by the address guard
var ErrBlocked = errors.New("webhook destination blocked")

// blockedPrefixes are loopback, private and special-use ranges a webhook
// must not reach unless private targets are allowed
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fec0::/10"),
	netip.MustParsePrefix("ff00::/8"),
	netip.MustParsePrefix("2001:db8::/32"),
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" || host == "localhost.localdomain" || strings.HasSuffix(host, ".localhost")
}

// guard validates destinations before and after DNS resolution
type guard struct {
	allowPrivate bool
}

// checkURL rejects schemes other than http(s), embedded credentials and,
// unless private targets are allowed, literal private hosts
func (g guard) checkURL(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.Mark(errors.Newf("scheme %q not allowed", u.Scheme), ErrBlocked)
	}
	if u.User != nil {
		return errors.Mark(errors.New("URL must not carry credentials"), ErrBlocked)
	}

	host := u.Hostname()
	if host == "" {
		return errors.Mark(errors.New("URL missing hostname"), ErrBlocked)
	}
	if g.allowPrivate {
		return nil
	}
	if isLocalhost(host) {
		return errors.Mark(errors.Newf("localhost destination %q", host), ErrBlocked)
	}
	if addr, err := netip.ParseAddr(host); err == nil && isBlockedAddr(addr) {
		return errors.Mark(errors.Newf("private address %s", addr), ErrBlocked)
	}
	return nil
}

// transport resolves hosts itself so a public name pointing at a private
// address is refused at dial time
func (g guard) transport() *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	t := &http.Transport{
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if g.allowPrivate {
		t.DialContext = dialer.DialContext
		return t
	}

	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Wrap(err, "invalid address")
		}
		addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve host %q", host)
		}
		if len(addrs) == 0 {
			return nil, errors.Newf("no addresses for host %q", host)
		}
		for _, a := range addrs {
			if isBlockedAddr(a) {
				return nil, errors.Mark(errors.Newf("%s resolves to private address %s", host, a), ErrBlocked)
			}
		}
		// Dial the checked address, not the name, so a second lookup cannot differ
		return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].String(), port))
	}
	return t
}
