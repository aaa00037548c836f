package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

var (
	// ErrBlocked wraps every refusal, so callers can tell a blocked url from a failed fetch.
	ErrBlocked = errors.New("url blocked")

	ErrInsecureScheme   = errors.New("only https urls are allowed")
	ErrDomainNotAllowed = errors.New("domain not allowed")
	ErrPrivateAddress   = errors.New("domain resolves to a private address")
)

var DefaultAllowedDomains = []string{
	"hacker-news.firebaseio.com",
	"reddit.com", "www.reddit.com", "old.reddit.com",
	"itunes.apple.com", "apps.apple.com",
	"play.google.com",
}

// Validator decides whether an outbound url may be fetched.
type Validator interface {
	Validate(ctx context.Context, rawURL string) error
}

type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

func NewGuard(allowed []string, log *zap.Logger) *Guard {
	if len(allowed) == 0 {
		allowed = DefaultAllowedDomains
	}

	domains := make([]string, len(allowed))
	for i, d := range allowed {
		domains[i] = strings.ToLower(strings.TrimSpace(d))
	}

	return &Guard{
		domains:  domains,
		resolver: net.DefaultResolver,
		log:      log.With(zap.String("component", "guard")),
	}
}

type Guard struct {
	domains  []string
	resolver Resolver
	log      *zap.Logger
}

func (g *Guard) WithResolver(r Resolver) *Guard {
	g.resolver = r
	return g
}

func (g *Guard) Validate(ctx context.Context, rawURL string) error {
	err := g.validate(ctx, rawURL)
	if err != nil {
		g.log.Warn("url blocked",
			zap.String("url", rawURL),
			zap.Error(err),
		)

		return fmt.Errorf("%w: %w", ErrBlocked, err)
	}

	return nil
}

func (g *Guard) validate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	if u.Scheme != "https" {
		return ErrInsecureScheme
	}

	host := strings.ToLower(u.Hostname())
	if !g.Allowed(host) {
		return fmt.Errorf("%w: %s", ErrDomainNotAllowed, host)
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return err
	}

	if len(addrs) == 0 {
		return fmt.Errorf("no addresses for %s", host)
	}

	for _, addr := range addrs {
		if !IsPublicIP(addr.IP) {
			return fmt.Errorf("%w: %s -> %s", ErrPrivateAddress, host, addr.IP)
		}
	}

	return nil
}

// Allowed reports whether host is an allowed domain or one of its subdomains.
func (g *Guard) Allowed(host string) bool {
	if host == "" {
		return false
	}

	for _, d := range g.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}

	return false
}

func IsPublicIP(ip net.IP) bool {
	return !(ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified())
}

// IsBlocked reports whether err comes from a guard refusal rather than the remote.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked) ||
		errors.Is(err, ErrInsecureScheme) ||
		errors.Is(err, ErrDomainNotAllowed) ||
		errors.Is(err, ErrPrivateAddress)
}

// DialControl is a net.Dialer Control hook that refuses connections to
// non-public addresses. It checks the address actually dialed, so a name
// that resolves differently after Validate is still caught.
func DialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}

	ip := net.ParseIP(host)
	if ip == nil || !IsPublicIP(ip) {
		return fmt.Errorf("%w: %w: %s", ErrBlocked, ErrPrivateAddress, address)
	}

	return nil
}

// AllowAll is a Validator that accepts every url.
type AllowAll struct{}

func (AllowAll) Validate(ctx context.Context, rawURL string) error {
	return nil
}
