package security

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type staticResolver map[string][]string

func (r staticResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := r[host]
	if !ok {
		return nil, errors.New("no such host")
	}

	addrs := make([]net.IPAddr, len(ips))
	for i, ip := range ips {
		addrs[i] = net.IPAddr{IP: net.ParseIP(ip)}
	}
	return addrs, nil
}

type guardTestSuite struct {
	suite.Suite
	guard *Guard
}

func (suite *guardTestSuite) SetupSuite() {
	resolver := staticResolver{
		"hacker-news.firebaseio.com": {"151.101.1.1"},
		"www.reddit.com":             {"151.101.65.140"},
		"sub.old.reddit.com":         {"151.101.65.141"},
		"itunes.apple.com":           {"17.253.1.1", "10.0.0.8"},
		"apps.apple.com":             {"127.0.0.1"},
		"play.google.com":            {"169.254.1.1"},
	}

	suite.guard = NewGuard(nil, zap.NewNop()).WithResolver(resolver)
}

func (suite *guardTestSuite) TestAllowedURL() {
	ctx := context.Background()

	err := suite.guard.Validate(ctx, "https://hacker-news.firebaseio.com/v0/askstories.json")
	suite.NoError(err)

	err = suite.guard.Validate(ctx, "https://sub.old.reddit.com/r/SaaS/hot.json")
	suite.NoError(err)
}

func (suite *guardTestSuite) TestRejectsHTTP() {
	err := suite.guard.Validate(context.Background(), "http://www.reddit.com/r/SaaS/hot.json")
	suite.ErrorIs(err, ErrInsecureScheme)
}

func (suite *guardTestSuite) TestRejectsUnknownDomain() {
	ctx := context.Background()

	err := suite.guard.Validate(ctx, "https://example.com/")
	suite.ErrorIs(err, ErrDomainNotAllowed)

	err = suite.guard.Validate(ctx, "https://evilreddit.com/")
	suite.ErrorIs(err, ErrDomainNotAllowed)
}

func (suite *guardTestSuite) TestRejectsPrivateResolution() {
	ctx := context.Background()

	err := suite.guard.Validate(ctx, "https://itunes.apple.com/search")
	suite.ErrorIs(err, ErrPrivateAddress)

	err = suite.guard.Validate(ctx, "https://apps.apple.com/")
	suite.ErrorIs(err, ErrPrivateAddress)

	err = suite.guard.Validate(ctx, "https://play.google.com/store")
	suite.ErrorIs(err, ErrPrivateAddress)
}

func (suite *guardTestSuite) TestRejectsUnresolvable() {
	err := suite.guard.Validate(context.Background(), "https://reddit.com/")
	suite.ErrorIs(err, ErrBlocked)
}

func (suite *guardTestSuite) TestRefusalsAreBlocked() {
	ctx := context.Background()

	for _, rawURL := range []string{
		"http://www.reddit.com/",
		"https://example.com/",
		"https://apps.apple.com/",
	} {
		err := suite.guard.Validate(ctx, rawURL)
		suite.ErrorIs(err, ErrBlocked, rawURL)
		suite.True(IsBlocked(err), rawURL)
	}

	suite.False(IsBlocked(errors.New("connection reset")))
	suite.False(IsBlocked(nil))
}

func (suite *guardTestSuite) TestDialControl() {
	suite.NoError(DialControl("tcp", "151.101.1.1:443", nil))
	suite.NoError(DialControl("tcp6", "[2606:4700::1111]:443", nil))

	for _, address := range []string{
		"127.0.0.1:443",
		"10.1.2.3:443",
		"192.168.0.10:80",
		"169.254.169.254:80",
		"[::1]:443",
		"0.0.0.0:80",
	} {
		err := DialControl("tcp", address, nil)
		suite.ErrorIs(err, ErrPrivateAddress, address)
		suite.ErrorIs(err, ErrBlocked, address)
	}
}

func TestGuardTestSuite(t *testing.T) {
	suite.Run(t, new(guardTestSuite))
}
