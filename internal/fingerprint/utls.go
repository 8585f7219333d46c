package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// Profiles lists every supported profile.
var Profiles = []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom}

// ParseProfile resolves a configured profile name. Empty means chrome.
func ParseProfile(s string) (Profile, error) {
	if s == "" {
		return ProfileChrome, nil
	}
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Profiles {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown fingerprint profile %q", s)
}

// Transport returns an http.RoundTripper whose TLS ClientHello mimics the
// given browser profile. ProfileGo returns a plain clone of the default
// transport.
func Transport(p Profile) (http.RoundTripper, error) {
	return newTransport(p, false)
}

func newTransport(p Profile, insecureSkipVerify bool) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p == ProfileGo {
		return transport, nil
	}

	var clientHelloID utls.ClientHelloID
	switch p {
	case ProfileChrome:
		clientHelloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		clientHelloID = utls.HelloFirefox_Auto
	case ProfileSafari:
		clientHelloID = utls.HelloIOS_Auto
	case ProfileRandom:
		clientHelloID = utls.HelloRandomizedNoALPN
	default:
		return nil, fmt.Errorf("unknown fingerprint profile %q", p)
	}

	// Surface unsupported presets at construction rather than on first dial.
	if p != ProfileRandom {
		if _, err := http1Spec(clientHelloID); err != nil {
			return nil, fmt.Errorf("build %s client hello: %w", p, err)
		}
	}

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		cfg := &utls.Config{ServerName: host, InsecureSkipVerify: insecureSkipVerify}
		var uConn *utls.UConn
		if p == ProfileRandom {
			uConn = utls.UClient(tcpConn, cfg, clientHelloID)
		} else {
			// extensions hold per-connection state, so each dial gets a fresh spec
			spec, err := http1Spec(clientHelloID)
			if err != nil {
				_ = tcpConn.Close()
				return nil, err
			}
			uConn = utls.UClient(tcpConn, cfg, utls.HelloCustom)
			if err := uConn.ApplyPreset(&spec); err != nil {
				_ = tcpConn.Close()
				return nil, fmt.Errorf("apply %s client hello: %w", p, err)
			}
		}

		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}

// http1Spec returns the preset for id with ALPN narrowed to http/1.1, since
// http.Transport cannot run h2 over a uTLS conn.
func http1Spec(id utls.ClientHelloID) (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return utls.ClientHelloSpec{}, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return spec, nil
}
